package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/credentials"
	"github.com/khanghh/krealm/internal/grants"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/realms"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/testutil"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/internal/twofactor"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBaseURL = "http://localhost:8080"

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any) {
}

type testEnv struct {
	db        *gorm.DB
	svc       *AuthorizeService
	bootstrap *realms.BootstrapResult
	clients   clients.ClientRepository
	redirects clients.RedirectURIRepository
	credRepo  credentials.CredentialRepository
	auditRepo audit.AuditEventRepository
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.NewTestDB(t)
	storage, _ := testutil.NewTestRedis(t)

	realmRepo := realms.NewRealmRepository(db)
	userRepo := users.NewUserRepository(db)
	roleRepo := roles.NewRoleRepository(db)
	clientRepo := clients.NewClientRepository(db)
	redirectRepo := clients.NewRedirectURIRepository(db)
	credRepo := credentials.NewCredentialRepository(db)
	auditRepo := audit.NewAuditEventRepository(db)

	keys, err := tokens.NewKeyService(tokens.NewKeyRepository(db), 16)
	require.NoError(t, err)
	hasher := credentials.NewArgon2Hasher(credentials.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, 2)
	creds := credentials.NewCredentialService(hasher, credRepo)
	enforcer := policy.NewEnforcer(userRepo, realmRepo, clientRepo)

	realmService := realms.NewRealmService(db, realmRepo, clientRepo, roleRepo, userRepo, keys, creds, enforcer, nopNotifier{})
	res, err := realmService.Bootstrap(context.Background(), realms.BootstrapConfig{AdminUsername: "admin", AdminPassword: "admin", AdminEmail: "admin@example.com"})
	require.NoError(t, err)

	sessionStore := sessions.NewSessionStore(storage, time.Minute)
	tokenService := tokens.NewTokenService(tokens.Options{BaseURL: testBaseURL}, keys, tokens.NewRefreshTokenRepository(db))
	engine := grants.NewEngine(grants.Options{RotateRefreshTokens: true}, userRepo, sessionStore, creds, tokenService)

	svc := NewAuthorizeService(Dependencies{
		Realms:       realmRepo,
		Clients:      clientRepo,
		RedirectURIs: redirectRepo,
		Users:        userRepo,
		Sessions:     sessionStore,
		Passwords:    creds,
		TwoFactor:    twofactor.NewTwoFactorService("krealm", storage, credRepo, hasher),
		Grants:       engine,
		Tokens:       tokenService,
		Keys:         keys,
		Audit:        audit.NewRecorder(auditRepo),
	})
	return &testEnv{
		db:        db,
		svc:       svc,
		bootstrap: res,
		clients:   clientRepo,
		redirects: redirectRepo,
		credRepo:  credRepo,
		auditRepo: auditRepo,
	}
}

func (e *testEnv) passwordGrant(t *testing.T, password string) (*tokens.JwtToken, error) {
	return e.svc.ExchangeToken(context.Background(), TokenRequest{
		RealmName: "master",
		GrantType: "password",
		ClientID:  "admin-cli",
		Username:  "admin",
		Password:  password,
	})
}

func TestPasswordGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tok, err := env.passwordGrant(t, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)

	identity, err := env.svc.ResolveIdentity(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, policy.IdentityUser, identity.Kind())
	assert.Equal(t, env.bootstrap.AdminUser.ID, identity.ID())

	_, err = env.passwordGrant(t, "wrong")
	assert.ErrorIs(t, err, grants.ErrInvalidPassword)

	events, err := env.auditRepo.ListByRealm(ctx, "master", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTypeTokenDenied, events[0].EventType)
	assert.Equal(t, audit.EventTypeTokenIssued, events[1].EventType)
}

func TestResolveIdentityRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ResolveIdentity(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidBearerToken)
}

func TestRefreshAfterLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tok, err := env.passwordGrant(t, "admin")
	require.NoError(t, err)

	refreshed, err := env.svc.ExchangeToken(ctx, TokenRequest{
		RealmName:    "master",
		GrantType:    "refresh_token",
		ClientID:     "admin-cli",
		RefreshToken: tok.RefreshToken,
	})
	require.NoError(t, err)

	// rotation revoked the first refresh token
	_, err = env.svc.ExchangeToken(ctx, TokenRequest{
		RealmName:    "master",
		GrantType:    "refresh_token",
		ClientID:     "admin-cli",
		RefreshToken: tok.RefreshToken,
	})
	assert.ErrorIs(t, err, grants.ErrInvalidRefreshToken)

	require.NoError(t, env.svc.Logout(ctx, "master", refreshed.RefreshToken, audit.ClientInfo{IP: "127.0.0.1"}))
	_, err = env.svc.ExchangeToken(ctx, TokenRequest{
		RealmName:    "master",
		GrantType:    "refresh_token",
		ClientID:     "admin-cli",
		RefreshToken: refreshed.RefreshToken,
	})
	assert.ErrorIs(t, err, grants.ErrInvalidRefreshToken)

	err = env.svc.Logout(ctx, "master", refreshed.RefreshToken, audit.ClientInfo{})
	assert.ErrorIs(t, err, grants.ErrInvalidRefreshToken)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	master := env.bootstrap.Realm

	client, err := clients.NewClient(master.ID, "web", "Web", false)
	require.NoError(t, err)
	require.NoError(t, env.clients.Create(ctx, client))
	require.NoError(t, env.redirects.Create(ctx, &model.RedirectURI{ClientID: client.ID, Value: "https://app.example.com/cb", Enabled: true}))

	_, err = env.svc.Authorize(ctx, AuthorizeRequest{RealmName: "master", ClientID: "web", RedirectURI: "https://evil.example.com/cb", ResponseType: "code"})
	assert.ErrorIs(t, err, ErrInvalidRedirectURI)
	_, err = env.svc.Authorize(ctx, AuthorizeRequest{RealmName: "master", ClientID: "web", RedirectURI: "https://app.example.com/cb", ResponseType: "token"})
	assert.ErrorIs(t, err, ErrUnsupportedResponseType)
	_, err = env.svc.Authorize(ctx, AuthorizeRequest{RealmName: "master", ClientID: "missing", RedirectURI: "https://app.example.com/cb", ResponseType: "code"})
	assert.ErrorIs(t, err, grants.ErrInvalidClient)

	sess, err := env.svc.Authorize(ctx, AuthorizeRequest{
		RealmName:    "master",
		ClientID:     "web",
		RedirectURI:  "https://app.example.com/cb",
		ResponseType: "code",
		State:        "xyz",
	})
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "admin"})
	require.NoError(t, err)
	redirect, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", redirect.Host)
	assert.Equal(t, res.Code, redirect.Query().Get("code"))
	assert.Equal(t, "xyz", redirect.Query().Get("state"))

	_, err = env.svc.ExchangeToken(ctx, TokenRequest{RealmName: "master", GrantType: "authorization_code", ClientID: "web", Code: res.Code})
	assert.ErrorIs(t, err, grants.ErrInvalidClientSecret)

	tok, err := env.svc.ExchangeToken(ctx, TokenRequest{
		RealmName:    "master",
		GrantType:    "authorization_code",
		ClientID:     "web",
		ClientSecret: *client.Secret,
		Code:         res.Code,
		RedirectURI:  "https://app.example.com/cb",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)

	// codes are single use
	_, err = env.svc.ExchangeToken(ctx, TokenRequest{
		RealmName:    "master",
		GrantType:    "authorization_code",
		ClientID:     "web",
		ClientSecret: *client.Secret,
		Code:         res.Code,
	})
	assert.ErrorIs(t, err, grants.ErrInvalidState)
}

func TestAuthenticateRequiresTOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.bootstrap.AdminUser

	secret, err := twofactor.GenerateTOTPSecret()
	require.NoError(t, err)
	require.NoError(t, env.credRepo.ReplaceSingleton(ctx, &model.Credential{
		UserID:         admin.ID,
		CredentialType: model.CredentialTypeTOTP,
		SecretData:     secret,
	}))

	client, err := clients.NewClient(env.bootstrap.Realm.ID, "spa", "SPA", true)
	require.NoError(t, err)
	require.NoError(t, env.clients.Create(ctx, client))
	require.NoError(t, env.redirects.Create(ctx, &model.RedirectURI{ClientID: client.ID, Value: `https://spa\.example\.com/.*`, Enabled: true}))

	sess, err := env.svc.Authorize(ctx, AuthorizeRequest{RealmName: "master", ClientID: "spa", RedirectURI: "https://spa.example.com/callback", ResponseType: "code"})
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "admin"})
	assert.ErrorIs(t, err, ErrTwoFactorRequired)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	res, err := env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "admin", TOTPCode: code})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Code)

	events, err := env.auditRepo.ListByRealm(ctx, "master", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTypeLoginSuccess, events[0].EventType)
	assert.Equal(t, audit.EventTypeTwoFAAttemptSuccess, events[1].EventType)
}

// TestAuthenticateFinishedSessionKeepsRecoveryCode repeats authentication on a
// session that already issued a code and expects the recovery code to survive.
func TestAuthenticateFinishedSessionKeepsRecoveryCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := policy.NewUserIdentity(env.bootstrap.AdminUser)

	secret, err := twofactor.GenerateTOTPSecret()
	require.NoError(t, err)
	require.NoError(t, env.credRepo.ReplaceSingleton(ctx, &model.Credential{
		UserID:         env.bootstrap.AdminUser.ID,
		CredentialType: model.CredentialTypeTOTP,
		SecretData:     secret,
	}))
	codes, err := env.svc.GenerateRecoveryCodes(ctx, admin, "")
	require.NoError(t, err)

	client, err := clients.NewClient(env.bootstrap.Realm.ID, "spa", "SPA", true)
	require.NoError(t, err)
	require.NoError(t, env.clients.Create(ctx, client))
	require.NoError(t, env.redirects.Create(ctx, &model.RedirectURI{ClientID: client.ID, Value: `https://spa\.example\.com/.*`, Enabled: true}))

	sess, err := env.svc.Authorize(ctx, AuthorizeRequest{RealmName: "master", ClientID: "spa", RedirectURI: "https://spa.example.com/callback", ResponseType: "code"})
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "admin", TOTPCode: code})
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, AuthenticateRequest{RealmName: "master", SessionID: sess.ID, Username: "admin", Password: "admin", RecoveryCode: codes[0]})
	assert.ErrorIs(t, err, sessions.ErrSessionAlreadyAuthorized)

	require.NoError(t, env.svc.BurnRecoveryCode(ctx, admin, codes[0], ""))
}

func TestAccountRequiresUserIdentity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	adminClient, err := env.clients.GetByClientID(ctx, env.bootstrap.Realm.ID, "admin-cli")
	require.NoError(t, err)
	_, err = env.svc.SetupTOTP(ctx, policy.NewClientIdentity(adminClient))
	assert.ErrorIs(t, err, ErrUserIdentityRequired)

	setup, err := env.svc.SetupTOTP(ctx, policy.NewUserIdentity(env.bootstrap.AdminUser))
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URI, "otpauth://totp/")

	codes, err := env.svc.GenerateRecoveryCodes(ctx, policy.NewUserIdentity(env.bootstrap.AdminUser), "")
	require.NoError(t, err)
	assert.NotEmpty(t, codes)
	require.NoError(t, env.svc.BurnRecoveryCode(ctx, policy.NewUserIdentity(env.bootstrap.AdminUser), codes[0], ""))
}

func TestDiscoveryAndCerts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	doc, err := env.svc.Discovery(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/realms/master", doc.Issuer)
	assert.Equal(t, testBaseURL+"/realms/master/protocol/openid-connect/token", doc.TokenEndpoint)
	assert.Contains(t, doc.GrantTypesSupported, "client_credentials")

	jwks, err := env.svc.Certs(ctx, "master")
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RS256", jwks.Keys[0].Algorithm)

	_, err = env.svc.Certs(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
