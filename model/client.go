package model

import (
	"time"

	"gorm.io/gorm"
)

type Client struct {
	ID                        string        `gorm:"primaryKey;size:36"`
	RealmID                   string        `gorm:"size:36;not null;uniqueIndex:idx_client_realm_client_id"`
	ClientID                  string        `gorm:"size:128;not null;uniqueIndex:idx_client_realm_client_id"`
	Name                      string        `gorm:"size:128;not null"`
	Secret                    *string       `gorm:"size:128"` // nil for public clients
	Enabled                   bool          `gorm:"not null"`
	Protocol                  string        `gorm:"size:32;not null"`
	PublicClient              bool          `gorm:"not null;default:false"`
	ServiceAccountEnabled     bool          `gorm:"not null;default:false"`
	DirectAccessGrantsEnabled bool          `gorm:"not null;default:false"`
	ClientType                string        `gorm:"size:32;not null"`
	RedirectURIs              []RedirectURI `gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewUUID()
	}
	return nil
}

// RedirectURI is an allowed redirect target of a client, matched exactly or as a regular expression.
type RedirectURI struct {
	ID        string `gorm:"primaryKey;size:36"`
	ClientID  string `gorm:"size:36;not null;index"`
	Value     string `gorm:"size:1024;not null"`
	Enabled   bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *RedirectURI) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewUUID()
	}
	return nil
}
