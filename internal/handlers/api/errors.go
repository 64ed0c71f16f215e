package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/auth"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/credentials"
	"github.com/khanghh/krealm/internal/grants"
	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/realms"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/twofactor"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrAlreadyExists, http.StatusConflict},

	{policy.ErrForbidden, http.StatusForbidden},
	{realms.ErrMasterRealmUndeletable, http.StatusForbidden},
	{realms.ErrMasterRealmImmutable, http.StatusForbidden},
	{users.ErrServiceAccountReadOnly, http.StatusForbidden},
	{auth.ErrUserIdentityRequired, http.StatusForbidden},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidBearerToken, http.StatusUnauthorized},
	{auth.ErrTwoFactorRequired, http.StatusUnauthorized},
	{twofactor.ErrVerificationFailed, http.StatusUnauthorized},
	{twofactor.ErrTOTPVerifyFailed, http.StatusUnauthorized},
	{grants.ErrInvalidClient, http.StatusUnauthorized},
	{grants.ErrInvalidClientSecret, http.StatusUnauthorized},
	{grants.ErrInvalidRefreshToken, http.StatusUnauthorized},

	{realms.ErrInvalidRealmName, http.StatusBadRequest},
	{realms.ErrUnsupportedSigningAlgorithm, http.StatusBadRequest},
	{clients.ErrClientIDEmpty, http.StatusBadRequest},
	{clients.ErrPublicClientSecret, http.StatusBadRequest},
	{clients.ErrPublicServiceAccount, http.StatusBadRequest},
	{clients.ErrInvalidRedirectURI, http.StatusBadRequest},
	{roles.ErrRoleNameEmpty, http.StatusBadRequest},
	{permissions.ErrUnknownPermission, http.StatusBadRequest},
	{users.ErrUsernameEmpty, http.StatusBadRequest},
	{users.ErrInvalidEmail, http.StatusBadRequest},
	{users.ErrPasswordEmpty, http.StatusBadRequest},
	{users.ErrRoleRealmMismatch, http.StatusBadRequest},
	{credentials.ErrPasswordEmpty, http.StatusBadRequest},
	{webhooks.ErrInvalidEndpoint, http.StatusBadRequest},
	{webhooks.ErrUnknownTrigger, http.StatusBadRequest},
	{webhooks.ErrNoTriggers, http.StatusBadRequest},
	{auth.ErrUnsupportedResponseType, http.StatusBadRequest},
	{auth.ErrInvalidRedirectURI, http.StatusBadRequest},
	{auth.ErrSessionRealmMismatch, http.StatusBadRequest},
	{sessions.ErrSessionNotFound, http.StatusBadRequest},
	{sessions.ErrSessionExpired, http.StatusBadRequest},
	{sessions.ErrSessionAlreadyAuthorized, http.StatusBadRequest},
	{twofactor.ErrTOTPNotEnrolled, http.StatusBadRequest},
	{twofactor.ErrInvalidTOTPSecret, http.StatusBadRequest},
	{twofactor.ErrRecoveryCodeDecode, http.StatusBadRequest},
	{twofactor.ErrUnknownRecoveryCodeFormat, http.StatusBadRequest},
}

func statusOf(err error) int {
	var lockedErr *twofactor.UserLockedError
	if errors.As(err, &lockedErr) {
		return http.StatusTooManyRequests
	}
	for _, entry := range errorStatuses {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// mapError turns a service error into the *fiber.Error the error handler renders.
func mapError(err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		return err
	}
	return fiber.NewError(status, err.Error())
}

var oauthErrorCodes = []struct {
	err    error
	status int
	code   string
}{
	{grants.ErrUnsupportedGrantType, http.StatusBadRequest, "unsupported_grant_type"},
	{grants.ErrInvalidClient, http.StatusUnauthorized, "invalid_client"},
	{grants.ErrInvalidClientSecret, http.StatusUnauthorized, "invalid_client"},
	{grants.ErrServiceAccountNotFound, http.StatusBadRequest, "unauthorized_client"},
	{grants.ErrInvalidState, http.StatusBadRequest, "invalid_grant"},
	{grants.ErrInvalidUser, http.StatusBadRequest, "invalid_grant"},
	{grants.ErrInvalidPassword, http.StatusBadRequest, "invalid_grant"},
	{grants.ErrInvalidRefreshToken, http.StatusBadRequest, "invalid_grant"},
	{model.ErrNotFound, http.StatusNotFound, "invalid_request"},
}

// oauthError writes a token endpoint error in the RFC 6749 shape.
func oauthError(ctx *fiber.Ctx, err error) error {
	for _, entry := range oauthErrorCodes {
		if errors.Is(err, entry.err) {
			if entry.status == http.StatusUnauthorized {
				ctx.Set(fiber.HeaderWWWAuthenticate, `Basic realm="`+ctx.Params("realm")+`"`)
			}
			return ctx.Status(entry.status).JSON(oauthErrorResponse{Error: entry.code, ErrorDescription: err.Error()})
		}
	}
	if errors.Is(err, grants.ErrInternal) {
		slog.Error("Token request failed", "realm", ctx.Params("realm"), "error", err)
		return ctx.Status(http.StatusInternalServerError).JSON(oauthErrorResponse{Error: "server_error"})
	}
	return err
}
