package model

import "time"

// Tag is a user-owned recipe label
type Tag struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	UserID    uint      `json:"-" gorm:"index;not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (t *Tag) SetName(name string) { t.Name = name }

func (t *Tag) SetOwner(userID uint) { t.UserID = userID }
