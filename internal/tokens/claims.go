package tokens

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/krealm/params"
)

type TokenType string

const (
	TokenTypeBearer  TokenType = "Bearer"
	TokenTypeRefresh TokenType = "Refresh"
	TokenTypeID      TokenType = "ID"
)

type Claims struct {
	jwt.RegisteredClaims
	Type              TokenType `json:"typ"`
	AuthorizedParty   string    `json:"azp,omitempty"`
	PreferredUsername string    `json:"preferred_username,omitempty"`
	Email             string    `json:"email,omitempty"`
	// ClientID is set on tokens issued to a client's service account.
	ClientID string `json:"client_id,omitempty"`
}

// JwtToken is the token endpoint response body.
type JwtToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
}

func IssuerFor(baseURL, realmName string) string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(baseURL, "/"), realmName)
}

func AudienceFor(realmName string) jwt.ClaimStrings {
	return jwt.ClaimStrings{realmName + params.RealmClientSuffix, params.DefaultAudienceAccount}
}
