package clients

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrClientNotFound       = fmt.Errorf("client %w", model.ErrNotFound)
	ErrClientAlreadyExists  = fmt.Errorf("client %w", model.ErrAlreadyExists)
	ErrRedirectURINotFound  = fmt.Errorf("redirect uri %w", model.ErrNotFound)
	ErrClientIDEmpty        = errors.New("client id cannot be empty")
	ErrPublicClientSecret   = errors.New("public clients have no secret")
	ErrPublicServiceAccount = errors.New("public clients cannot have a service account")
	ErrInvalidRedirectURI   = errors.New("invalid redirect uri")
)
