package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered account.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"` // Never expose this to the client
	FirstName    string     `gorm:"size:50;not null" json:"first_name"`
	LastName     string     `gorm:"size:50;not null" json:"last_name"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	IsVerified   bool       `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
