package grants

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedGrantType   = errors.New("unsupported grant type")
	ErrInvalidClient          = errors.New("invalid client")
	ErrInvalidClientSecret    = errors.New("invalid client secret")
	ErrInvalidState           = errors.New("invalid authorization state")
	ErrInvalidUser            = errors.New("invalid user")
	ErrInvalidPassword        = errors.New("invalid password")
	ErrServiceAccountNotFound = errors.New("service account not found")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrInternal               = errors.New("internal server error")
)

func internalError(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
