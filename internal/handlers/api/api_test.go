package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/auth"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/credentials"
	"github.com/khanghh/krealm/internal/grants"
	"github.com/khanghh/krealm/internal/middlewares"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any) {
}

type testServer struct {
	app     *fiber.App
	baseURL string
}

func newTestServer(t *testing.T) *testServer {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	storage, _ := testutil.NewTestRedis(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := "http://" + ln.Addr().String()

	var (
		realmRepo    = realms.NewRealmRepository(db)
		userRepo     = users.NewUserRepository(db)
		roleRepo     = roles.NewRoleRepository(db)
		clientRepo   = clients.NewClientRepository(db)
		redirectRepo = clients.NewRedirectURIRepository(db)
		credRepo     = credentials.NewCredentialRepository(db)
		webhookRepo  = webhooks.NewWebhookRepository(db)
	)
	keys, err := tokens.NewKeyService(tokens.NewKeyRepository(db), 16)
	require.NoError(t, err)
	hasher := credentials.NewArgon2Hasher(credentials.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, 2)
	creds := credentials.NewCredentialService(hasher, credRepo)
	tokenService := tokens.NewTokenService(tokens.Options{BaseURL: baseURL}, keys, tokens.NewRefreshTokenRepository(db))
	sessionStore := sessions.NewSessionStore(storage, time.Minute)
	enforcer := policy.NewEnforcer(userRepo, realmRepo, clientRepo)
	notifier := nopNotifier{}

	realmService := realms.NewRealmService(db, realmRepo, clientRepo, roleRepo, userRepo, keys, creds, enforcer, notifier)
	_, err = realmService.Bootstrap(ctx, realms.BootstrapConfig{AdminUsername: "admin", AdminPassword: "admin"})
	require.NoError(t, err)

	authorizeService := auth.NewAuthorizeService(auth.Dependencies{
		Realms:       realmRepo,
		Clients:      clientRepo,
		RedirectURIs: redirectRepo,
		Users:        userRepo,
		Sessions:     sessionStore,
		Passwords:    creds,
		TwoFactor:    twofactor.NewTwoFactorService("krealm", storage, credRepo, hasher),
		Grants:       grants.NewEngine(grants.Options{}, userRepo, sessionStore, creds, tokenService),
		Tokens:       tokenService,
		Keys:         keys,
		Audit:        audit.NewRecorder(audit.NewAuditEventRepository(db)),
	})
	roleService := roles.NewRoleService(realmRepo, clientRepo, roleRepo, enforcer, notifier)

	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	SetupRoutes(app, Handlers{
		Auth:     NewAuthHandler(authorizeService, false),
		Account:  NewAccountHandler(authorizeService),
		Realms:   NewRealmHandler(realmService),
		Clients:  NewClientHandler(clients.NewClientService(db, realmRepo, clientRepo, redirectRepo, userRepo, enforcer, notifier), roleService),
		Roles:    NewRoleHandler(roleService),
		Users:    NewUserHandler(users.NewUserService(realmRepo, userRepo, roleRepo, creds, tokenService, enforcer, notifier)),
		Webhooks: NewWebhookHandler(webhooks.NewWebhookService(realmRepo, webhookRepo, enforcer, notifier)),
	}, middlewares.RequireIdentity(authorizeService), middlewares.TokenRateLimiter(memory.New(), 100, time.Minute))

	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return &testServer{app: app, baseURL: baseURL}
}

func (s *testServer) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: "admin-cli",
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.baseURL + "/realms/master/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestDiscoveryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/realms/master/.well-known/openid-configuration", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc auth.DiscoveryDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, srv.baseURL+"/realms/master", doc.Issuer)

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/realms/master/protocol/openid-connect/certs", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Alg string `json:"alg"`
		} `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RS256", jwks.Keys[0].Alg)

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/realms/missing/protocol/openid-connect/certs", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPasswordGrantOverHTTP(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	cfg := srv.oauthConfig()

	tok, err := cfg.PasswordCredentialsToken(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)

	_, err = cfg.PasswordCredentialsToken(ctx, "admin", "wrong")
	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	// an expired token forces the refresh grant
	expired := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	refreshed, err := cfg.TokenSource(ctx, expired).Token()
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestAdminAPI(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	tok, err := srv.oauthConfig().PasswordCredentialsToken(ctx, "admin", "admin")
	require.NoError(t, err)
	client := srv.oauthConfig().Client(ctx, tok)

	resp, _ := doJSON(t, http.DefaultClient, http.MethodGet, srv.baseURL+"/admin/realms", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, client, http.MethodPost, srv.baseURL+"/admin/realms", realmRequest{Name: "acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = doJSON(t, client, http.MethodPost, srv.baseURL+"/admin/realms", realmRequest{Name: "acme"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodGet, srv.baseURL+"/admin/realms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var realmList struct {
		Data []realmResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &realmList))
	names := mapSlice(realmList.Data, func(r realmResponse) string { return r.Name })
	assert.ElementsMatch(t, []string{"master", "acme"}, names)

	resp, body = doJSON(t, client, http.MethodPost, srv.baseURL+"/admin/realms/acme/clients", createClientRequest{
		ClientID:     "web",
		Name:         "Web",
		RedirectURIs: []string{"https://app.example.com/cb"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Data clientResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.Data.Secret)

	resp, body = doJSON(t, client, http.MethodGet, srv.baseURL+"/admin/realms/acme/clients/"+created.Data.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched struct {
		Data clientResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Empty(t, fetched.Data.Secret)

	resp, body = doJSON(t, client, http.MethodPost, srv.baseURL+"/admin/realms/acme/users", createUserRequest{Username: "bob", Email: "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var user struct {
		Data userResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &user))

	resp, _ = doJSON(t, client, http.MethodPost, srv.baseURL+"/admin/realms/acme/users", createUserRequest{Username: "eve", Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodPut, srv.baseURL+"/admin/realms/acme/users/"+user.Data.ID+"/reset-password", resetPasswordRequest{Value: "hunter2"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	bobConfig := &oauth2.Config{
		ClientID:     "web",
		ClientSecret: created.Data.Secret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  srv.baseURL + "/realms/acme/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	bobToken, err := bobConfig.PasswordCredentialsToken(ctx, "bob", "hunter2")
	require.NoError(t, err)

	// bob has no roles in acme
	resp, _ = doJSON(t, bobConfig.Client(ctx, bobToken), http.MethodGet, srv.baseURL+"/admin/realms/acme/users", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodDelete, srv.baseURL+"/admin/realms/master", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodDelete, srv.baseURL+"/admin/realms/acme", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodGet, srv.baseURL+"/admin/realms/acme", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBasicCredentials(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(ctx *fiber.Ctx) error {
		id, secret, ok := basicCredentials(ctx)
		if !ok {
			return ctx.SendStatus(fiber.StatusUnauthorized)
		}
		return ctx.SendString(id + "|" + secret)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("my%20client", "s%3Acret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "my client|s:cret", string(body))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(realms.ErrRealmNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(users.ErrUserAlreadyExists))
	assert.Equal(t, http.StatusForbidden, statusOf(policy.NewForbiddenError("nope")))
	assert.Equal(t, http.StatusUnauthorized, statusOf(twofactor.NewAttemptFailError(2)))
	assert.Equal(t, http.StatusTooManyRequests, statusOf(twofactor.NewUserLockedError("locked", time.Now().Add(time.Minute))))
	assert.Equal(t, http.StatusBadRequest, statusOf(clients.ErrInvalidRedirectURI))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, statusOf(model.ErrNotFound))
}
