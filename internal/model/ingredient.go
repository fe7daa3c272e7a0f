package model

import "time"

// Ingredient is a user-owned recipe component
type Ingredient struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	UserID    uint      `json:"-" gorm:"index;not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (i *Ingredient) SetName(name string) { i.Name = name }

func (i *Ingredient) SetOwner(userID uint) { i.UserID = userID }
