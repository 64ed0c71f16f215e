package credentials

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type CredentialRepository interface {
	WithTx(tx *gorm.DB) CredentialRepository
	Create(ctx context.Context, credential *model.Credential) error
	GetByUserAndType(ctx context.Context, userID string, credentialType string) (*model.Credential, error)
	FindByUserAndType(ctx context.Context, userID string, credentialType string) ([]*model.Credential, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Credential, error)
	ReplaceSingleton(ctx context.Context, credential *model.Credential) error
	Delete(ctx context.Context, userID string, credentialID string) (int64, error)
	DeleteByUserAndType(ctx context.Context, userID string, credentialType string, keepIDs ...string) error
}

type credentialRepository struct {
	db *gorm.DB
}

func (r *credentialRepository) WithTx(tx *gorm.DB) CredentialRepository {
	return NewCredentialRepository(tx)
}

func (r *credentialRepository) Create(ctx context.Context, credential *model.Credential) error {
	return r.db.WithContext(ctx).Create(credential).Error
}

func (r *credentialRepository) GetByUserAndType(ctx context.Context, userID string, credentialType string) (*model.Credential, error) {
	var credential model.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND credential_type = ?", userID, credentialType).
		Order("created_at DESC").
		First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	return &credential, err
}

func (r *credentialRepository) FindByUserAndType(ctx context.Context, userID string, credentialType string) ([]*model.Credential, error) {
	var credentials []*model.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND credential_type = ?", userID, credentialType).
		Find(&credentials).Error
	return credentials, err
}

func (r *credentialRepository) FindByUser(ctx context.Context, userID string) ([]*model.Credential, error) {
	var credentials []*model.Credential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&credentials).Error
	return credentials, err
}

// ReplaceSingleton stores the credential as the only one of its type for the user.
func (r *credentialRepository) ReplaceSingleton(ctx context.Context, credential *model.Credential) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND credential_type = ?", credential.UserID, credential.CredentialType).
			Delete(&model.Credential{}).Error
		if err != nil {
			return err
		}
		return tx.Create(credential).Error
	})
}

func (r *credentialRepository) Delete(ctx context.Context, userID string, credentialID string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", credentialID, userID).Delete(&model.Credential{})
	return ret.RowsAffected, ret.Error
}

func (r *credentialRepository) DeleteByUserAndType(ctx context.Context, userID string, credentialType string, keepIDs ...string) error {
	query := r.db.WithContext(ctx).Where("user_id = ? AND credential_type = ?", userID, credentialType)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	return query.Delete(&model.Credential{}).Error
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db}
}
