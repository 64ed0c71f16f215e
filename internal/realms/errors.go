package realms

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrRealmNotFound               = fmt.Errorf("realm %w", model.ErrNotFound)
	ErrRealmAlreadyExists          = fmt.Errorf("realm %w", model.ErrAlreadyExists)
	ErrRealmSettingsNotFound       = fmt.Errorf("realm settings %w", model.ErrNotFound)
	ErrInvalidRealmName            = errors.New("invalid realm name")
	ErrMasterRealmUndeletable      = errors.New("master realm cannot be deleted")
	ErrMasterRealmImmutable        = errors.New("master realm cannot be renamed")
	ErrUnsupportedSigningAlgorithm = errors.New("unsupported signing algorithm")
)
