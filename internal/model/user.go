package model

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrEmailRequired is returned when a user is created without an email
var ErrEmailRequired = errors.New("users must have an email address")

// User represents an account keyed by email. Email is the sole login
// credential, there is no separate username.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(250);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Name         string    `json:"name" gorm:"type:varchar(250)"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	IsStaff      bool      `json:"is_staff" gorm:"default:false"`
	IsSuperuser  bool      `json:"is_superuser" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Tags        []Tag        `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Ingredients []Ingredient `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Recipes     []Recipe     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// NormalizeEmail lowercases the domain portion of an email address.
// The local part is left untouched.
func NormalizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// NewUser builds a user with a normalized email and hashed password.
// It fails when the email is empty.
func NewUser(email, password, name string) (*User, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}

	user := &User{
		Email:    NormalizeEmail(email),
		Name:     name,
		IsActive: true,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	return user, nil
}

// NewSuperuser builds a user elevated to staff and superuser
func NewSuperuser(email, password string) (*User, error) {
	user, err := NewUser(email, password, "")
	if err != nil {
		return nil, err
	}
	user.IsStaff = true
	user.IsSuperuser = true
	return user, nil
}

// SetPassword replaces the stored hash with a bcrypt hash of plain
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the most recently set password
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// PurgeUser deletes a user and everything it owns in a single transaction:
// recipes with their join rows, tags, ingredients and the auth token. Kept at
// the application level so the cascade holds on engines that do not enforce
// foreign keys.
func PurgeUser(db *gorm.DB, userID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM recipe_tags WHERE recipe_id IN (SELECT id FROM recipes WHERE user_id = ?)",
			userID).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM recipe_ingredients WHERE recipe_id IN (SELECT id FROM recipes WHERE user_id = ?)",
			userID).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Recipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Ingredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&AuthToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, userID).Error
	})
}
