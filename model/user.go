package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores user information. A user with ClientID set is the service account of that client.
type User struct {
	ID            string  `gorm:"primaryKey;size:36"`
	RealmID       string  `gorm:"size:36;not null;uniqueIndex:idx_user_realm_username"`
	ClientID      *string `gorm:"size:36;index"`
	Username      string  `gorm:"size:128;not null;uniqueIndex:idx_user_realm_username"`
	Email         string  `gorm:"size:256;not null"`
	EmailVerified bool    `gorm:"not null;default:false"`
	Firstname     string  `gorm:"size:64;not null"`
	Lastname      string  `gorm:"size:64;not null"`
	Enabled       bool    `gorm:"not null"`
	Roles         []Role  `gorm:"many2many:user_role;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewUUID()
	}
	return nil
}

func (u *User) IsServiceAccount() bool {
	return u.ClientID != nil
}

type UserRole struct {
	UserID    string `gorm:"primaryKey;size:36"`
	RoleID    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

func (UserRole) TableName() string {
	return "user_role"
}
