package tokens

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type KeyRepository interface {
	GetByRealm(ctx context.Context, realmID string) (*model.JwtKey, error)
	Create(ctx context.Context, key *model.JwtKey) error
	DeleteByRealm(ctx context.Context, realmID string) error
}

type keyRepository struct {
	db *gorm.DB
}

func (r *keyRepository) GetByRealm(ctx context.Context, realmID string) (*model.JwtKey, error) {
	var key model.JwtKey
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *keyRepository) Create(ctx context.Context, key *model.JwtKey) error {
	err := r.db.WithContext(ctx).Create(key).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrKeyAlreadyExists
	}
	return err
}

func (r *keyRepository) DeleteByRealm(ctx context.Context, realmID string) error {
	return r.db.WithContext(ctx).Where("realm_id = ?", realmID).Delete(&model.JwtKey{}).Error
}

func NewKeyRepository(db *gorm.DB) KeyRepository {
	return &keyRepository{db: db}
}
