package tokens

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrKeyNotFound          = fmt.Errorf("realm key %w", model.ErrNotFound)
	ErrKeyAlreadyExists     = fmt.Errorf("realm key %w", model.ErrAlreadyExists)
	ErrInvalidKey           = errors.New("invalid realm key")
	ErrSignatureInvalid     = errors.New("token signature invalid")
	ErrTokenExpired         = errors.New("token expired")
	ErrMalformedToken       = errors.New("malformed token")
	ErrInvalidToken         = errors.New("invalid token")
	ErrWrongRealmKey        = errors.New("token not signed by the realm key")
	ErrWrongTokenType       = errors.New("unexpected token type")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenNotFound = fmt.Errorf("refresh token %w", model.ErrNotFound)
)
