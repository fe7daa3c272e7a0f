package main

import (
	"context"

	"recipe-service/internal/model"
	"recipe-service/internal/router"
	"recipe-service/pkg/config"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/pkg/ratelimit"
	"recipe-service/pkg/storage"
	"recipe-service/prometheus"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting recipe service...", zap.String("environment", cfg.Server.Env))

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", cfg.Metrics.Prefix))

	ctx := context.Background()

	// Block until the database accepts connections
	if err := database.WaitForDB(ctx, cfg, log); err != nil {
		log.Fatal("Database never became available", zap.Error(err))
	}

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(log,
		&model.User{},
		&model.AuthToken{},
		&model.Tag{},
		&model.Ingredient{},
		&model.Recipe{},
	); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Bootstrap a superuser when credentials are configured
	if err := bootstrapSuperuser(cfg, log); err != nil {
		log.Warn("Failed to bootstrap superuser", zap.Error(err))
	}

	// Select the image store backend
	var store storage.Store
	if cfg.S3.Bucket != "" {
		store, err = storage.NewS3Store(ctx, &cfg.S3)
		if err != nil {
			log.Fatal("Failed to initialize S3 store", zap.Error(err))
		}
		log.Info("Image store: S3", zap.String("bucket", cfg.S3.Bucket))
	} else {
		store, err = storage.NewLocalStore(cfg.Upload.Dir)
		if err != nil {
			log.Fatal("Failed to initialize local store", zap.Error(err))
		}
		log.Info("Image store: local", zap.String("dir", cfg.Upload.Dir))
	}

	// Optional Redis-backed login rate limiter
	var limiter *ratelimit.RedisLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(client, cfg.Redis.LoginLimit, cfg.Redis.LoginWindow, "login:")
		log.Info("Login rate limiter enabled",
			zap.String("redis", cfg.Redis.Addr),
			zap.Int("limit", cfg.Redis.LoginLimit))
	}

	e := router.New(store, limiter)

	log.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}

// bootstrapSuperuser creates the configured admin account when it does not
// exist yet.
func bootstrapSuperuser(cfg *config.Config, log *zap.Logger) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return nil
	}

	db := database.GetDB()
	var existing model.User
	if result := db.Where("email = ?", model.NormalizeEmail(cfg.Admin.Email)).First(&existing); result.Error == nil {
		return nil
	}

	admin, err := model.NewSuperuser(cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return err
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Info("Superuser created", zap.String("email", admin.Email))
	return nil
}
