package twofactor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/khanghh/krealm/internal/credentials"
	"github.com/khanghh/krealm/internal/store"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

type TwoFactorService struct {
	issuer         string
	userStateStore *userStateStore
	credentialRepo credentials.CredentialRepository
	hasher         credentials.Hasher
	now            func() time.Time
}

func (s *TwoFactorService) getUserState(ctx context.Context, userID string) (*UserState, error) {
	userState, err := s.userStateStore.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		userState = &UserState{ID: userID}
		err = s.userStateStore.Set(ctx, userID, *userState, params.TwoFactorStateMaxAge)
	}
	if err != nil {
		return nil, err
	}
	return userState, nil
}

func (s *TwoFactorService) checkLocked(userState *UserState) error {
	if userState.IsLocked(s.now()) {
		return NewUserLockedError("too many failed attempts", time.Unix(userState.LockedUntil, 0))
	}
	return nil
}

func (s *TwoFactorService) recordFailure(ctx context.Context, userID string) error {
	failCount, err := s.userStateStore.IncreaseFailCount(ctx, userID)
	if err != nil {
		return err
	}
	if failCount >= params.TwoFactorMaxFailCount {
		until := s.now().Add(params.TwoFactorLockDuration)
		if err := s.userStateStore.LockUntil(ctx, userID, until); err != nil {
			return err
		}
		if err := s.userStateStore.ResetFailCount(ctx, userID); err != nil {
			return err
		}
		return NewUserLockedError("too many failed attempts", until)
	}
	return NewAttemptFailError(params.TwoFactorMaxFailCount - failCount)
}

// SetupTOTP generates a fresh secret and its provisioning URI. Nothing is stored until EnrollTOTP succeeds.
func (s *TwoFactorService) SetupTOTP(ctx context.Context, accountName string) (secret string, uri string, err error) {
	secret, err = GenerateTOTPSecret()
	if err != nil {
		return "", "", err
	}
	uri, err = OTPAuthURI(s.issuer, accountName, secret)
	if err != nil {
		return "", "", err
	}
	return secret, uri, nil
}

// EnrollTOTP stores the secret as the user's TOTP credential once the first code checks out.
func (s *TwoFactorService) EnrollTOTP(ctx context.Context, userID, secret, code, label string) error {
	if _, err := secretEncoding.DecodeString(secret); err != nil {
		return ErrInvalidTOTPSecret
	}
	step, ok := matchTOTPStep(secret, code, s.now())
	if !ok {
		return ErrTOTPVerifyFailed
	}
	if label == "" {
		label = "Authenticator app"
	}
	credential := &model.Credential{
		UserID:         userID,
		CredentialType: model.CredentialTypeTOTP,
		SecretData:     secret,
		Label:          label,
	}
	if err := s.credentialRepo.ReplaceSingleton(ctx, credential); err != nil {
		return err
	}
	return s.userStateStore.SetTOTPVerifiedWindow(ctx, userID, step)
}

func (s *TwoFactorService) IsTOTPEnrolled(ctx context.Context, userID string) (bool, error) {
	_, err := s.credentialRepo.GetByUserAndType(ctx, userID, model.CredentialTypeTOTP)
	if errors.Is(err, credentials.ErrCredentialNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ChallengeTOTP verifies a code against the enrolled secret. The time step a code matched
// is remembered and only codes of a later step are accepted afterwards, so a code is
// accepted at most once even within the skew range.
func (s *TwoFactorService) ChallengeTOTP(ctx context.Context, userID, code string) error {
	userState, err := s.getUserState(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.checkLocked(userState); err != nil {
		return err
	}
	credential, err := s.credentialRepo.GetByUserAndType(ctx, userID, model.CredentialTypeTOTP)
	if errors.Is(err, credentials.ErrCredentialNotFound) {
		return ErrTOTPNotEnrolled
	}
	if err != nil {
		return err
	}

	step, ok := matchTOTPStep(credential.SecretData, code, s.now())
	if ok && step > userState.TOTPVerifiedWindow {
		if err := s.userStateStore.SetTOTPVerifiedWindow(ctx, userID, step); err != nil {
			return err
		}
		return s.userStateStore.ResetFailCount(ctx, userID)
	}
	return s.recordFailure(ctx, userID)
}

func (s *TwoFactorService) DisableTOTP(ctx context.Context, userID string) error {
	return s.credentialRepo.DeleteByUserAndType(ctx, userID, model.CredentialTypeTOTP)
}

// GenerateRecoveryCodes issues a new set of single use codes and invalidates the previous set.
// Only hashes are stored, the plain codes are returned once.
func (s *TwoFactorService) GenerateRecoveryCodes(ctx context.Context, userID string, amount int, format string) ([]string, error) {
	formatter, err := FormatterFor(format)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		amount = params.RecoveryCodeAmount
	}

	codes := make([]string, amount)
	creds := make([]*model.Credential, amount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < amount; i++ {
		raw := make([]byte, params.RecoveryCodeLength)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		codes[i] = formatter.Format(raw)
		g.Go(func() error {
			hashed, err := s.hasher.HashPassword(gctx, hex.EncodeToString(raw))
			if err != nil {
				return err
			}
			creds[i] = &model.Credential{
				UserID:         userID,
				CredentialType: model.CredentialTypeRecoveryCode,
				SecretData:     hashed.Hash,
				Salt:           hashed.Salt,
				Label:          "Recovery code",
				CredentialData: datatypes.NewJSONType(hashed.CredentialData),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keepIDs := make([]string, 0, amount)
	for _, cred := range creds {
		if err := s.credentialRepo.Create(ctx, cred); err != nil {
			return nil, err
		}
		keepIDs = append(keepIDs, cred.ID)
	}
	if err := s.credentialRepo.DeleteByUserAndType(ctx, userID, model.CredentialTypeRecoveryCode, keepIDs...); err != nil {
		return nil, err
	}
	return codes, nil
}

// BurnRecoveryCode consumes a matching recovery code. Each code verifies at most once.
func (s *TwoFactorService) BurnRecoveryCode(ctx context.Context, userID, code, format string) error {
	formatter, err := FormatterFor(format)
	if err != nil {
		return err
	}
	raw, err := formatter.Decode(code)
	if err != nil {
		return err
	}
	userState, err := s.getUserState(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.checkLocked(userState); err != nil {
		return err
	}

	creds, err := s.credentialRepo.FindByUserAndType(ctx, userID, model.CredentialTypeRecoveryCode)
	if err != nil {
		return err
	}
	plain := hex.EncodeToString(raw)
	for _, cred := range creds {
		ok, err := s.hasher.VerifyPassword(ctx, plain, cred.SecretData, cred.Salt, cred.CredentialData.Data())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		deleted, err := s.credentialRepo.Delete(ctx, userID, cred.ID)
		if err != nil {
			return err
		}
		if deleted != 1 {
			// consumed concurrently
			return ErrVerificationFailed
		}
		return s.userStateStore.ResetFailCount(ctx, userID)
	}
	return s.recordFailure(ctx, userID)
}

func (s *TwoFactorService) CountRecoveryCodes(ctx context.Context, userID string) (int, error) {
	creds, err := s.credentialRepo.FindByUserAndType(ctx, userID, model.CredentialTypeRecoveryCode)
	return len(creds), err
}

func NewTwoFactorService(issuer string, storage store.Storage, credentialRepo credentials.CredentialRepository, hasher credentials.Hasher) *TwoFactorService {
	return &TwoFactorService{
		issuer:         issuer,
		userStateStore: newUserStateStore(storage),
		credentialRepo: credentialRepo,
		hasher:         hasher,
		now:            time.Now,
	}
}
