package auth

import (
	"context"

	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
)

type TOTPSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauth_uri"`
}

func accountUser(identity policy.Identity) (*model.User, error) {
	if identity.Kind() != policy.IdentityUser || identity.User() == nil {
		return nil, ErrUserIdentityRequired
	}
	return identity.User(), nil
}

// SetupTOTP returns a fresh secret for the caller. It becomes active once EnrollTOTP confirms a code.
func (s *AuthorizeService) SetupTOTP(ctx context.Context, identity policy.Identity) (*TOTPSetup, error) {
	user, err := accountUser(identity)
	if err != nil {
		return nil, err
	}
	secret, uri, err := s.TwoFactor.SetupTOTP(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	return &TOTPSetup{Secret: secret, URI: uri}, nil
}

func (s *AuthorizeService) EnrollTOTP(ctx context.Context, identity policy.Identity, secret, code, label string) error {
	user, err := accountUser(identity)
	if err != nil {
		return err
	}
	return s.TwoFactor.EnrollTOTP(ctx, user.ID, secret, code, label)
}

func (s *AuthorizeService) DisableTOTP(ctx context.Context, identity policy.Identity) error {
	user, err := accountUser(identity)
	if err != nil {
		return err
	}
	return s.TwoFactor.DisableTOTP(ctx, user.ID)
}

// GenerateRecoveryCodes replaces the caller's recovery codes. The plain codes are only returned here.
func (s *AuthorizeService) GenerateRecoveryCodes(ctx context.Context, identity policy.Identity, format string) ([]string, error) {
	user, err := accountUser(identity)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = params.DefaultRecoveryCodeFormat
	}
	return s.TwoFactor.GenerateRecoveryCodes(ctx, user.ID, params.RecoveryCodeAmount, format)
}

func (s *AuthorizeService) BurnRecoveryCode(ctx context.Context, identity policy.Identity, code, format string) error {
	user, err := accountUser(identity)
	if err != nil {
		return err
	}
	if format == "" {
		format = params.DefaultRecoveryCodeFormat
	}
	return s.TwoFactor.BurnRecoveryCode(ctx, user.ID, code, format)
}
