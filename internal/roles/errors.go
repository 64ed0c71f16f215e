package roles

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrRoleNotFound      = fmt.Errorf("role %w", model.ErrNotFound)
	ErrRoleAlreadyExists = fmt.Errorf("role %w", model.ErrAlreadyExists)
	ErrRoleNameEmpty     = errors.New("role name cannot be empty")
)
