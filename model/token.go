package model

import (
	"time"

	"gorm.io/gorm"
)

// JwtKey holds the PEM encoded RSA key pair of a realm. One row per realm.
type JwtKey struct {
	ID         string `gorm:"primaryKey;size:36"`
	RealmID    string `gorm:"uniqueIndex;size:36;not null"`
	KeyID      string `gorm:"size:64;not null"`
	PrivateKey string `gorm:"type:text;not null"`
	PublicKey  string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (k *JwtKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = NewUUID()
	}
	return nil
}

// RefreshToken is the ledger row of an issued refresh token.
type RefreshToken struct {
	ID        string    `gorm:"primaryKey;size:36"`
	JTI       string    `gorm:"column:jti;uniqueIndex;size:64;not null"`
	UserID    string    `gorm:"size:36;not null;index"`
	Revoked   bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = NewUUID()
	}
	return nil
}
