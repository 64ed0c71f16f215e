package users

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrUserNotFound           = fmt.Errorf("user %w", model.ErrNotFound)
	ErrUserAlreadyExists      = fmt.Errorf("user %w", model.ErrAlreadyExists)
	ErrUsernameEmpty          = errors.New("username cannot be empty")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrPasswordEmpty          = errors.New("password cannot be empty")
	ErrRoleRealmMismatch      = errors.New("role belongs to another realm")
	ErrServiceAccountReadOnly = errors.New("service account users are managed through their client")
)
