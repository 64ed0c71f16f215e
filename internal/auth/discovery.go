package auth

import (
	"context"

	"github.com/khanghh/krealm/internal/grants"
)

type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	EndSessionEndpoint                string   `json:"end_session_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// Discovery builds the OpenID provider metadata of the realm.
func (s *AuthorizeService) Discovery(ctx context.Context, realmName string) (*DiscoveryDocument, error) {
	realm, err := s.Realms.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	issuer := s.Tokens.Issuer(realm.Name)
	endpoint := issuer + "/protocol/openid-connect"
	grantTypes := []string{
		grants.AuthorizationCode.String(),
		grants.Password.String(),
		grants.ClientCredentials.String(),
		grants.RefreshToken.String(),
	}
	return &DiscoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             endpoint + "/auth",
		TokenEndpoint:                     endpoint + "/token",
		EndSessionEndpoint:                endpoint + "/logout",
		JwksURI:                           endpoint + "/certs",
		GrantTypesSupported:               grantTypes,
		ResponseTypesSupported:            []string{"code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
	}, nil
}
