package grants

import "fmt"

type GrantType string

const (
	AuthorizationCode GrantType = "authorization_code"
	Password          GrantType = "password"
	ClientCredentials GrantType = "client_credentials"
	RefreshToken      GrantType = "refresh_token"
)

func ParseGrantType(s string) (GrantType, error) {
	switch g := GrantType(s); g {
	case AuthorizationCode, Password, ClientCredentials, RefreshToken:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGrantType, s)
}

func (g GrantType) String() string {
	return string(g)
}
