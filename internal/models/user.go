// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a contest participant. Ownership and vote attribution always use ID.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Name      string         `json:"name"`
	Image     string         `json:"image"`
	Password  *string        `json:"-"`
	IsAdmin   bool           `gorm:"not null;default:false" json:"is_admin,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
