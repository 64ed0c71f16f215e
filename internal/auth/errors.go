package auth

import "errors"

var (
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	ErrInvalidRedirectURI      = errors.New("invalid redirect uri")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrTwoFactorRequired       = errors.New("two factor verification required")
	ErrSessionRealmMismatch    = errors.New("auth session belongs to another realm")
	ErrInvalidBearerToken      = errors.New("invalid bearer token")
	ErrUserIdentityRequired    = errors.New("operation requires a user identity")
)
