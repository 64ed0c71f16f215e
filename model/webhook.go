package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Webhook struct {
	ID           string                      `gorm:"primaryKey;size:36"`
	RealmID      string                      `gorm:"size:36;not null;index"`
	Name         string                      `gorm:"size:128;not null;default:''"`
	Description  string                      `gorm:"size:512;not null;default:''"`
	Endpoint     string                      `gorm:"size:1024;not null"`
	Triggers     datatypes.JSONSlice[string] `gorm:"not null"`
	SubscribedAt time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt    time.Time
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = NewUUID()
	}
	return nil
}
