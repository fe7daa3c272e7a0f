package model

import (
	"time"

	"gorm.io/gorm"
)

// AuthToken is the opaque bearer credential for a user. Exactly one row per
// user: issuance reuses the existing key when one is present.
type AuthToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	User      User      `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates the opaque key before the row is persisted
func (t *AuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.Key == "" {
		t.Key = generateSecureToken()
	}
	return nil
}
