package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB creates a private in-memory database with the full schema
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&User{}, &AuthToken{}, &Tag{}, &Ingredient{}, &Recipe{}))
	return db
}

func sampleUser(t *testing.T, db *gorm.DB, email string) *User {
	t.Helper()
	user, err := NewUser(email, "randompassword", "")
	require.NoError(t, err)
	require.NoError(t, db.Create(user).Error)
	return user
}
