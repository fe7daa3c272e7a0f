package model

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Recipe belongs to one user and links to tags and ingredients through
// independent join rows. Deleting a recipe removes its join rows but never
// the shared tags or ingredients.
type Recipe struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"type:varchar(255);not null"`
	TimeMinutes int          `json:"time_minutes" gorm:"not null"`
	Price       float64      `json:"price" gorm:"type:decimal(5,2);not null"`
	Link        string       `json:"link" gorm:"type:varchar(255)"`
	Image       string       `json:"image" gorm:"type:varchar(255)"`
	UserID      uint         `json:"-" gorm:"index;not null"`
	Tags        []Tag        `json:"tags" gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE"`
	Ingredients []Ingredient `json:"ingredients" gorm:"many2many:recipe_ingredients;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RecipeImageKey rewrites an uploaded filename to a generated unique
// identifier, preserving only the original extension, under a fixed prefix.
func RecipeImageKey(originalName string) string {
	ext := filepath.Ext(originalName)
	return "recipes/" + uuid.New().String() + ext
}
