package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	tokens map[string]*model.User
}

func (f *fakeResolver) ResolveIdentity(ctx context.Context, bearer string) (policy.Identity, error) {
	user, ok := f.tokens[bearer]
	if !ok {
		return policy.Identity{}, errors.New("unknown token")
	}
	return policy.NewUserIdentity(user), nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
}

func TestRequireIdentity(t *testing.T) {
	app := newTestApp()
	resolver := &fakeResolver{tokens: map[string]*model.User{"good": {ID: "u1", Username: "alice"}}}
	app.Get("/me", RequireIdentity(resolver), func(ctx *fiber.Ctx) error {
		return ctx.SendString(GetIdentity(ctx).User().Username)
	})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
		{"bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set(fiber.HeaderAuthorization, tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.header)
		if tc.status == http.StatusUnauthorized {
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderWWWAuthenticate))
		}
	}
}

func TestErrorHandler(t *testing.T) {
	app := newTestApp()
	app.Get("/conflict", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "realm already exists")
	})
	app.Get("/boom", func(ctx *fiber.Ctx) error {
		return errors.New("database is on fire")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "realm already exists", body.Error.Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Error.Message)
}

func TestTokenRateLimiter(t *testing.T) {
	app := newTestApp()
	app.Post("/realms/:realm/token", TokenRateLimiter(memory.New(), 2, time.Minute), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})

	post := func(realm string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/realms/"+realm+"/token", nil))
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, post("acme"))
	assert.Equal(t, http.StatusOK, post("acme"))
	assert.Equal(t, http.StatusTooManyRequests, post("acme"))
	assert.Equal(t, http.StatusOK, post("other"))
}
