package api

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/auth"
	"github.com/khanghh/krealm/params"
)

type AuthHandler struct {
	authorizeService AuthorizeService
	cookieSecure     bool
}

type authorizeResponse struct {
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
}

type authenticateRequest struct {
	SessionID    string `json:"session_id" form:"session_id"`
	Username     string `json:"username" form:"username"`
	Password     string `json:"password" form:"password"`
	TOTP         string `json:"totp" form:"totp"`
	RecoveryCode string `json:"recovery_code" form:"recovery_code"`
}

type authenticateResponse struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

func clientInfo(ctx *fiber.Ctx) audit.ClientInfo {
	return audit.ClientInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

// basicCredentials reads client_secret_basic credentials. Both parts are form
// encoded before base64 per RFC 6749 section 2.3.1.
func basicCredentials(ctx *fiber.Ctx) (string, string, bool) {
	scheme, encoded, ok := strings.Cut(ctx.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", false
	}
	id, errID := url.QueryUnescape(id)
	secret, errSecret := url.QueryUnescape(secret)
	if errID != nil || errSecret != nil {
		return "", "", false
	}
	return id, secret, true
}

func (h *AuthHandler) GetOpenIDConfiguration(ctx *fiber.Ctx) error {
	doc, err := h.authorizeService.Discovery(ctx.Context(), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(doc)
}

func (h *AuthHandler) GetCerts(ctx *fiber.Ctx) error {
	jwks, err := h.authorizeService.Certs(ctx.Context(), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(jwks)
}

// GetAuth opens an auth session for the authorization code flow. The session
// id is handed back as a cookie and in the body for the login step.
func (h *AuthHandler) GetAuth(ctx *fiber.Ctx) error {
	sess, err := h.authorizeService.Authorize(ctx.Context(), auth.AuthorizeRequest{
		RealmName:    ctx.Params("realm"),
		ClientID:     ctx.Query("client_id"),
		RedirectURI:  ctx.Query("redirect_uri"),
		ResponseType: ctx.Query("response_type"),
		Scope:        ctx.Query("scope"),
		State:        ctx.Query("state"),
		Nonce:        ctx.Query("nonce"),
	})
	if err != nil {
		return mapError(err)
	}
	ctx.Cookie(&fiber.Cookie{
		Name:     params.AuthSessionCookieName,
		Value:    sess.ID,
		Path:     "/realms/" + ctx.Params("realm"),
		Expires:  time.Unix(sess.ExpiresAt, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ctx.JSON(authorizeResponse{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt})
}

func (h *AuthHandler) PostAuthenticate(ctx *fiber.Ctx) error {
	var body authenticateRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = ctx.Cookies(params.AuthSessionCookieName)
	}
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing auth session")
	}

	result, err := h.authorizeService.Authenticate(ctx.Context(), auth.AuthenticateRequest{
		RealmName:    ctx.Params("realm"),
		SessionID:    sessionID,
		Username:     body.Username,
		Password:     body.Password,
		TOTPCode:     body.TOTP,
		RecoveryCode: body.RecoveryCode,
		ClientInfo:   clientInfo(ctx),
	})
	if errors.Is(err, auth.ErrTwoFactorRequired) {
		return ctx.Status(fiber.StatusUnauthorized).JSON(authenticateResponse{Status: "totp_required"})
	}
	if err != nil {
		return mapError(err)
	}
	ctx.ClearCookie(params.AuthSessionCookieName)
	return ctx.JSON(authenticateResponse{Status: "success", URL: result.RedirectURL})
}

func (h *AuthHandler) PostToken(ctx *fiber.Ctx) error {
	req := auth.TokenRequest{
		RealmName:    ctx.Params("realm"),
		GrantType:    ctx.FormValue("grant_type"),
		ClientID:     ctx.FormValue("client_id"),
		ClientSecret: ctx.FormValue("client_secret"),
		Code:         ctx.FormValue("code"),
		RedirectURI:  ctx.FormValue("redirect_uri"),
		Username:     ctx.FormValue("username"),
		Password:     ctx.FormValue("password"),
		RefreshToken: ctx.FormValue("refresh_token"),
		ClientInfo:   clientInfo(ctx),
	}
	if id, secret, ok := basicCredentials(ctx); ok {
		req.ClientID, req.ClientSecret = id, secret
	}
	if req.GrantType == "" || req.ClientID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(oauthErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "grant_type and client_id are required",
		})
	}

	token, err := h.authorizeService.ExchangeToken(ctx.Context(), req)
	if err != nil {
		return oauthError(ctx, err)
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Set(fiber.HeaderPragma, "no-cache")
	return ctx.JSON(token)
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	refreshToken := ctx.FormValue("refresh_token")
	if refreshToken == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(oauthErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "refresh_token is required",
		})
	}
	if err := h.authorizeService.Logout(ctx.Context(), ctx.Params("realm"), refreshToken, clientInfo(ctx)); err != nil {
		return oauthError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewAuthHandler(authorizeService AuthorizeService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authorizeService: authorizeService,
		cookieSecure:     cookieSecure,
	}
}
