package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CredentialTypePassword     = "password"
	CredentialTypeTOTP         = "totp"
	CredentialTypeRecoveryCode = "recovery_code"
)

type CredentialData struct {
	HashIterations uint32 `json:"hash_iterations"`
	Algorithm      string `json:"algorithm"`
	Temporary      bool   `json:"temporary,omitempty"`
}

// Credential is a stored secret of a user. Password and TOTP credentials are
// unique per user, recovery codes are one row per code.
type Credential struct {
	ID             string                              `gorm:"primaryKey;size:36"`
	UserID         string                              `gorm:"size:36;not null;index:idx_credential_user_type"`
	CredentialType string                              `gorm:"size:32;not null;index:idx_credential_user_type"`
	SecretData     string                              `gorm:"size:512;not null"`
	Salt           string                              `gorm:"size:128;not null;default:''"`
	Label          string                              `gorm:"size:128;not null;default:''"`
	CredentialData datatypes.JSONType[CredentialData] `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewUUID()
	}
	return nil
}
