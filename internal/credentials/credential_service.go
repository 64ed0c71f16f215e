package credentials

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/datatypes"
)

type CredentialService struct {
	hasher         Hasher
	credentialRepo CredentialRepository
}

func (s *CredentialService) Hasher() Hasher {
	return s.hasher
}

func (s *CredentialService) HashPassword(ctx context.Context, password string) (*HashResult, error) {
	return s.hasher.HashPassword(ctx, password)
}

// VerifyPassword checks the password against the user's password credential.
func (s *CredentialService) VerifyPassword(ctx context.Context, userID string, password string) (bool, error) {
	credential, err := s.credentialRepo.GetByUserAndType(ctx, userID, model.CredentialTypePassword)
	if err != nil {
		return false, err
	}
	return s.hasher.VerifyPassword(ctx, password, credential.SecretData, credential.Salt, credential.CredentialData.Data())
}

// ResetPassword replaces the user's password credential with a hash of newPassword.
func (s *CredentialService) ResetPassword(ctx context.Context, userID string, newPassword string, temporary bool) error {
	if newPassword == "" {
		return ErrPasswordEmpty
	}
	hashed, err := s.hasher.HashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	data := hashed.CredentialData
	data.Temporary = temporary
	return s.credentialRepo.ReplaceSingleton(ctx, &model.Credential{
		UserID:         userID,
		CredentialType: model.CredentialTypePassword,
		SecretData:     hashed.Hash,
		Salt:           hashed.Salt,
		Label:          "My password",
		CredentialData: datatypes.NewJSONType(data),
	})
}

func (s *CredentialService) HasCredential(ctx context.Context, userID string, credentialType string) (bool, error) {
	_, err := s.credentialRepo.GetByUserAndType(ctx, userID, credentialType)
	if errors.Is(err, ErrCredentialNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *CredentialService) ListCredentials(ctx context.Context, userID string) ([]*model.Credential, error) {
	return s.credentialRepo.FindByUser(ctx, userID)
}

func (s *CredentialService) DeleteCredential(ctx context.Context, userID string, credentialID string) error {
	deleted, err := s.credentialRepo.Delete(ctx, userID, credentialID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func NewCredentialService(hasher Hasher, credentialRepo CredentialRepository) *CredentialService {
	return &CredentialService{
		hasher:         hasher,
		credentialRepo: credentialRepo,
	}
}
