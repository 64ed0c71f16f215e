package model

import (
	"time"

	"gorm.io/gorm"
)

type Role struct {
	ID          string  `gorm:"primaryKey;size:36"`
	RealmID     string  `gorm:"size:36;not null;index"`
	ClientID    *string `gorm:"size:36;index"` // nil for realm scoped roles
	Name        string  `gorm:"size:128;not null"`
	Description string  `gorm:"size:512;not null;default:''"`
	Permissions uint64  `gorm:"not null;default:0"` // capability bitfield
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewUUID()
	}
	return nil
}
