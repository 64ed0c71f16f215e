package model

import (
	"time"

	"gorm.io/gorm"
)

type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false"`
	Realm     string    `gorm:"size:64;not null;index"`
	UserID    string    `gorm:"size:36;index"`          // empty when the user could not be resolved
	Username  string    `gorm:"size:128;not null"`      // snapshot of username at event time
	ClientID  string    `gorm:"size:128;index"`         // client_id of the requesting client
	EventType string    `gorm:"size:64;not null;index"` // token_issued, token_denied, login_success...
	GrantType string    `gorm:"size:32"`                // only for token events
	Reason    string    `gorm:"size:512"`               // failure reason or context
	IP        string    `gorm:"size:45;not null"`       // IPv4/IPv6
	UserAgent string    `gorm:"size:512;not null"`      // user agent string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == 0 {
		e.ID = GenerateID()
	}
	return nil
}
