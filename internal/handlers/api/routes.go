package api

import (
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Auth     *AuthHandler
	Account  *AccountHandler
	Realms   *RealmHandler
	Clients  *ClientHandler
	Roles    *RoleHandler
	Users    *UserHandler
	Webhooks *WebhookHandler
}

// SetupRoutes mounts the OpenID Connect endpoints under /realms/:realm and the
// admin API under /admin/realms. requireIdentity guards everything that acts
// on behalf of a bearer token, tokenLimiter only the token endpoint.
func SetupRoutes(router fiber.Router, h Handlers, requireIdentity fiber.Handler, tokenLimiter fiber.Handler) {
	realm := router.Group("/realms/:realm")
	realm.Get("/.well-known/openid-configuration", h.Auth.GetOpenIDConfiguration)

	oidc := realm.Group("/protocol/openid-connect")
	oidc.Get("/certs", h.Auth.GetCerts)
	oidc.Get("/auth", h.Auth.GetAuth)
	oidc.Post("/token", tokenLimiter, h.Auth.PostToken)
	oidc.Post("/logout", h.Auth.PostLogout)

	actions := realm.Group("/login-actions")
	actions.Post("/authenticate", h.Auth.PostAuthenticate)
	actions.Post("/setup-otp", requireIdentity, h.Account.PostSetupOTP)
	actions.Post("/verify-otp", requireIdentity, h.Account.PostVerifyOTP)
	actions.Post("/disable-otp", requireIdentity, h.Account.PostDisableOTP)
	actions.Post("/generate-recovery-codes", requireIdentity, h.Account.PostGenerateRecoveryCodes)
	actions.Post("/burn-recovery-code", requireIdentity, h.Account.PostBurnRecoveryCode)

	admin := router.Group("/admin/realms", requireIdentity)
	admin.Get("/", h.Realms.GetRealms)
	admin.Post("/", h.Realms.PostRealm)
	admin.Get("/:realm", h.Realms.GetRealm)
	admin.Put("/:realm", h.Realms.PutRealm)
	admin.Delete("/:realm", h.Realms.DeleteRealm)
	admin.Get("/:realm/settings", h.Realms.GetRealmSettings)
	admin.Put("/:realm/settings", h.Realms.PutRealmSettings)

	admin.Get("/:realm/clients", h.Clients.GetClients)
	admin.Post("/:realm/clients", h.Clients.PostClient)
	admin.Get("/:realm/clients/:id", h.Clients.GetClient)
	admin.Put("/:realm/clients/:id", h.Clients.PutClient)
	admin.Delete("/:realm/clients/:id", h.Clients.DeleteClient)
	admin.Post("/:realm/clients/:id/secret", h.Clients.PostClientSecret)
	admin.Get("/:realm/clients/:id/roles", h.Clients.GetClientRoles)
	admin.Get("/:realm/clients/:id/redirects", h.Clients.GetRedirectURIs)
	admin.Post("/:realm/clients/:id/redirects", h.Clients.PostRedirectURI)
	admin.Put("/:realm/clients/:id/redirects/:uri_id", h.Clients.PutRedirectURI)
	admin.Delete("/:realm/clients/:id/redirects/:uri_id", h.Clients.DeleteRedirectURI)

	admin.Get("/:realm/roles", h.Roles.GetRoles)
	admin.Post("/:realm/roles", h.Roles.PostRole)
	admin.Get("/:realm/roles/:id", h.Roles.GetRole)
	admin.Put("/:realm/roles/:id", h.Roles.PutRole)
	admin.Put("/:realm/roles/:id/permissions", h.Roles.PutRolePermissions)
	admin.Delete("/:realm/roles/:id", h.Roles.DeleteRole)

	admin.Get("/:realm/users", h.Users.GetUsers)
	admin.Post("/:realm/users", h.Users.PostUser)
	admin.Delete("/:realm/users/bulk", h.Users.DeleteUsers)
	admin.Get("/:realm/users/:id", h.Users.GetUser)
	admin.Put("/:realm/users/:id", h.Users.PutUser)
	admin.Delete("/:realm/users/:id", h.Users.DeleteUser)
	admin.Get("/:realm/users/:id/roles", h.Users.GetUserRoles)
	admin.Post("/:realm/users/:id/roles/:role_id", h.Users.PostUserRole)
	admin.Delete("/:realm/users/:id/roles/:role_id", h.Users.DeleteUserRole)
	admin.Put("/:realm/users/:id/reset-password", h.Users.PutResetPassword)
	admin.Get("/:realm/users/:id/credentials", h.Users.GetCredentials)
	admin.Delete("/:realm/users/:id/credentials/:credential_id", h.Users.DeleteCredential)

	admin.Get("/:realm/webhooks", h.Webhooks.GetWebhooks)
	admin.Post("/:realm/webhooks", h.Webhooks.PostWebhook)
	admin.Get("/:realm/webhooks/:id", h.Webhooks.GetWebhook)
	admin.Put("/:realm/webhooks/:id", h.Webhooks.PutWebhook)
	admin.Delete("/:realm/webhooks/:id", h.Webhooks.DeleteWebhook)
}
