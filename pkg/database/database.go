package database

import (
	"context"
	"fmt"
	"time"

	"recipe-service/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB initializes the database connection
func InitDB(cfg *config.Config) error {
	// Set up GORM logger configuration
	var logLevel logger.LogLevel
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Error
	}

	// Override log level if explicitly set in config
	switch cfg.Database.LogLevel {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Surface unique-constraint violations as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	var err error
	switch cfg.Database.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Database.SQLitePath), gormConfig)
	default:
		// Configure Postgres options
		pgConfig := postgres.Config{
			DSN:                  cfg.Database.GetDSN(),
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		}
		db, err = gorm.Open(postgres.New(pgConfig), gormConfig)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return nil
}

// WaitForDB blocks until the database accepts connections, retrying on a
// fixed interval. It is the startup probe run before InitDB so the service
// does not come up ahead of its store.
func WaitForDB(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		// Embedded store, nothing to wait for
		return nil
	}

	deadline := time.Now().Add(cfg.Database.WaitTimeout)
	log.Info("Waiting for database...",
		zap.String("host", cfg.Database.Host),
		zap.String("port", cfg.Database.Port))

	for {
		err := pingOnce(ctx, cfg)
		if err == nil {
			log.Info("Database available")
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("database not reachable after %s: %w", cfg.Database.WaitTimeout, err)
		}

		log.Warn("Database unavailable, retrying",
			zap.Duration("interval", cfg.Database.WaitInterval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Database.WaitInterval):
		}
	}
}

func pingOnce(ctx context.Context, cfg *config.Config) error {
	probe, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	sqlDB, err := probe.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return sqlDB.PingContext(ctx)
}

// MigrateModels runs auto-migrations for the provided models
func MigrateModels(log *zap.Logger, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	start := time.Now()
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(models...); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	log.Info("Database migration completed successfully",
		zap.Duration("duration", time.Since(start)))
	return nil
}

// GetDB returns a reference to the database instance
func GetDB() *gorm.DB {
	return db
}

// SetDB overrides the database instance. Used by tests to point the
// handlers at an in-memory store.
func SetDB(d *gorm.DB) {
	db = d
}
