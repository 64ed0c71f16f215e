package model

import (
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var snowflakeNode *snowflake.Node

var Models = []interface{}{
	&Realm{}, &RealmSetting{}, &Client{}, &RedirectURI{},
	&User{}, &Role{}, &UserRole{}, &Credential{},
	&JwtKey{}, &RefreshToken{}, &Webhook{}, &AuditEvent{},
}

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

func GenerateID() uint64 {
	return uint64(snowflakeNode.Generate())
}

// NewUUID returns a time ordered identifier for domain entities.
func NewUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&User{}, "Roles", &UserRole{}); err != nil {
		return err
	}
	return db.AutoMigrate(Models...)
}
