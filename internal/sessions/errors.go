package sessions

import "errors"

var (
	ErrSessionNotFound          = errors.New("auth session not found")
	ErrSessionExpired           = errors.New("auth session expired")
	ErrSessionAlreadyAuthorized = errors.New("auth session already authorized")
)
