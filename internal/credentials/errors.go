package credentials

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrHashing            = errors.New("password hashing failed")
	ErrVerification       = errors.New("password verification failed")
	ErrCredentialNotFound = fmt.Errorf("credential %w", model.ErrNotFound)
	ErrPasswordEmpty      = errors.New("password cannot be empty")
)
