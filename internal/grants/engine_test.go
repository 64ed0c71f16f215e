package grants

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users []*model.User
}

func (f *fakeUsers) GetByRealmAndID(ctx context.Context, realmID string, userID string) (*model.User, error) {
	for _, u := range f.users {
		if u.RealmID == realmID && u.ID == userID {
			return u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeUsers) GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.RealmID == realmID && u.Username == username {
			return u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeUsers) GetServiceAccount(ctx context.Context, clientID string) (*model.User, error) {
	for _, u := range f.users {
		if u.ClientID != nil && *u.ClientID == clientID {
			return u, nil
		}
	}
	return nil, model.ErrNotFound
}

type fakeExchanger map[string]*sessions.AuthSession

func (f fakeExchanger) Exchange(ctx context.Context, code string) (*sessions.AuthSession, error) {
	sess, ok := f[code]
	if !ok {
		return nil, sessions.ErrSessionNotFound
	}
	delete(f, code)
	return sess, nil
}

type fakePasswords map[string]string

func (f fakePasswords) VerifyPassword(ctx context.Context, userID string, password string) (bool, error) {
	stored, ok := f[userID]
	if !ok {
		return false, model.ErrNotFound
	}
	return stored == password, nil
}

type fakeIssuer struct {
	issued  []tokens.IssueRequest
	refresh map[string]*tokens.Claims
	revoked []string
}

func (f *fakeIssuer) IssueTokens(ctx context.Context, req tokens.IssueRequest) (*tokens.JwtToken, error) {
	f.issued = append(f.issued, req)
	return &tokens.JwtToken{AccessToken: "access-" + req.User.ID, TokenType: "Bearer"}, nil
}

func (f *fakeIssuer) VerifyRefreshToken(ctx context.Context, tokenStr string, realm *model.Realm) (*tokens.Claims, error) {
	claims, ok := f.refresh[tokenStr]
	if !ok {
		return nil, tokens.ErrInvalidRefreshToken
	}
	return claims, nil
}

func (f *fakeIssuer) RevokeRefreshToken(ctx context.Context, jti string) error {
	f.revoked = append(f.revoked, jti)
	return nil
}

type failingUsers struct{ fakeUsers }

func (failingUsers) GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error) {
	return nil, errors.New("connection refused")
}

var (
	realm        = &model.Realm{ID: "realm-1", Name: "acme"}
	secret       = "s3cret"
	confidential = &model.Client{ID: "c-1", RealmID: "realm-1", ClientID: "backend", Secret: &secret, Enabled: true, ServiceAccountEnabled: true}
	public       = &model.Client{ID: "c-2", RealmID: "realm-1", ClientID: "spa", PublicClient: true, DirectAccessGrantsEnabled: true, Enabled: true}
	saClientID   = "c-1"
)

func newTestEngine(opts Options) (*Engine, *fakeIssuer, fakeExchanger) {
	users := &fakeUsers{users: []*model.User{
		{ID: "u-1", RealmID: "realm-1", Username: "alice", Enabled: true},
		{ID: "u-2", RealmID: "realm-1", Username: "bob", Enabled: false},
		{ID: "sa-1", RealmID: "realm-1", ClientID: &saClientID, Username: "service-account-backend", Enabled: true},
	}}
	issuer := &fakeIssuer{refresh: map[string]*tokens.Claims{
		"rt-alice": {RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", Subject: "u-1"}, AuthorizedParty: "spa"},
	}}
	exchanger := fakeExchanger{
		"code-1": {RealmID: "realm-1", ClientID: "c-1", UserID: "u-1", RedirectURI: "https://app/cb"},
		"code-2": {RealmID: "realm-1", ClientID: "c-2", UserID: "u-1"},
	}
	passwords := fakePasswords{"u-1": "wonderland", "u-2": "builder"}
	return NewEngine(opts, users, exchanger, passwords, issuer), issuer, exchanger
}

func TestParseGrantType(t *testing.T) {
	for _, name := range []string{"authorization_code", "password", "client_credentials", "refresh_token"} {
		g, err := ParseGrantType(name)
		require.NoError(t, err)
		assert.Equal(t, name, g.String())
	}
	_, err := ParseGrantType("implicit")
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestDisabledClientRejected(t *testing.T) {
	engine, _, _ := newTestEngine(Options{})
	disabled := *public
	disabled.Enabled = false
	_, err := engine.Execute(context.Background(), Params{GrantType: Password, Realm: realm, Client: &disabled, Username: "alice", Password: "wonderland"})
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestAuthorizationCodeGrant(t *testing.T) {
	ctx := context.Background()
	engine, issuer, _ := newTestEngine(Options{})

	_, err := engine.Execute(ctx, Params{GrantType: AuthorizationCode, Realm: realm, Client: confidential, ClientSecret: "wrong", Code: "code-1"})
	assert.ErrorIs(t, err, ErrInvalidClientSecret)

	tok, err := engine.Execute(ctx, Params{GrantType: AuthorizationCode, Realm: realm, Client: confidential, ClientSecret: secret, Code: "code-1", RedirectURI: "https://app/cb"})
	require.NoError(t, err)
	assert.Equal(t, "access-u-1", tok.AccessToken)
	assert.Equal(t, "backend", issuer.issued[0].ClientID)

	// codes are single use
	_, err = engine.Execute(ctx, Params{GrantType: AuthorizationCode, Realm: realm, Client: confidential, ClientSecret: secret, Code: "code-1"})
	assert.ErrorIs(t, err, ErrInvalidState)

	// a code issued to another client cannot be redeemed
	_, err = engine.Execute(ctx, Params{GrantType: AuthorizationCode, Realm: realm, Client: confidential, ClientSecret: secret, Code: "code-2"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPasswordGrant(t *testing.T) {
	ctx := context.Background()
	engine, issuer, _ := newTestEngine(Options{})

	tok, err := engine.Execute(ctx, Params{GrantType: Password, Realm: realm, Client: public, Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.False(t, issuer.issued[0].ServiceAccount)

	cases := []struct {
		name   string
		params Params
		want   error
	}{
		{"wrong password", Params{Client: public, Username: "alice", Password: "nope"}, ErrInvalidPassword},
		{"unknown user", Params{Client: public, Username: "carol", Password: "x"}, ErrInvalidUser},
		{"disabled user", Params{Client: public, Username: "bob", Password: "builder"}, ErrInvalidUser},
		{"service account", Params{Client: public, Username: "service-account-backend", Password: "x"}, ErrInvalidUser},
		{"no direct grants without secret", Params{Client: confidential, Username: "alice", Password: "wonderland"}, ErrInvalidClientSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.params.GrantType = Password
			tc.params.Realm = realm
			_, err := engine.Execute(ctx, tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// a confidential client without direct grants may still authenticate with its secret
	_, err = engine.Execute(ctx, Params{GrantType: Password, Realm: realm, Client: confidential, ClientSecret: secret, Username: "alice", Password: "wonderland"})
	assert.NoError(t, err)
}

func TestPasswordGrantInternalError(t *testing.T) {
	engine := NewEngine(Options{}, &failingUsers{}, fakeExchanger{}, fakePasswords{}, &fakeIssuer{})
	_, err := engine.Execute(context.Background(), Params{GrantType: Password, Realm: realm, Client: public, Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	engine, issuer, _ := newTestEngine(Options{})

	_, err := engine.Execute(ctx, Params{GrantType: ClientCredentials, Realm: realm, Client: public})
	assert.ErrorIs(t, err, ErrInvalidClientSecret)

	_, err = engine.Execute(ctx, Params{GrantType: ClientCredentials, Realm: realm, Client: confidential, ClientSecret: secret})
	require.NoError(t, err)
	require.Len(t, issuer.issued, 1)
	assert.True(t, issuer.issued[0].ServiceAccount)
	assert.Equal(t, "sa-1", issuer.issued[0].User.ID)

	other := *confidential
	other.ID = "c-9"
	_, err = engine.Execute(ctx, Params{GrantType: ClientCredentials, Realm: realm, Client: &other, ClientSecret: secret})
	assert.ErrorIs(t, err, ErrServiceAccountNotFound)
}

func TestRefreshTokenGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps old token by default", func(t *testing.T) {
		engine, issuer, _ := newTestEngine(Options{})
		_, err := engine.Execute(ctx, Params{GrantType: RefreshToken, Realm: realm, Client: public, RefreshToken: "rt-alice"})
		require.NoError(t, err)
		assert.Empty(t, issuer.revoked)
	})

	t.Run("rotation revokes old token", func(t *testing.T) {
		engine, issuer, _ := newTestEngine(Options{RotateRefreshTokens: true})
		_, err := engine.Execute(ctx, Params{GrantType: RefreshToken, Realm: realm, Client: public, RefreshToken: "rt-alice"})
		require.NoError(t, err)
		assert.Equal(t, []string{"jti-1"}, issuer.revoked)
	})

	t.Run("rejects other client", func(t *testing.T) {
		engine, _, _ := newTestEngine(Options{})
		_, err := engine.Execute(ctx, Params{GrantType: RefreshToken, Realm: realm, Client: confidential, ClientSecret: secret, RefreshToken: "rt-alice"})
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		engine, _, _ := newTestEngine(Options{})
		_, err := engine.Execute(ctx, Params{GrantType: RefreshToken, Realm: realm, Client: public, RefreshToken: "garbage"})
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}
