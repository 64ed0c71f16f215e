package model

import (
	"time"

	"gorm.io/gorm"
)

// Realm is a tenant namespace owning its own clients, users, roles and signing key.
type Realm struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Realm) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewUUID()
	}
	return nil
}

type RealmSetting struct {
	ID                      string `gorm:"primaryKey;size:36"`
	RealmID                 string `gorm:"uniqueIndex;size:36;not null"`
	DefaultSigningAlgorithm string `gorm:"size:16;not null"`
	UpdatedAt               time.Time
}

func (s *RealmSetting) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewUUID()
	}
	return nil
}
