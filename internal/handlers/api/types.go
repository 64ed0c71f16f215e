package api

import (
	"context"

	"github.com/go-jose/go-jose/v4"
	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/auth"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
)

type AuthorizeService interface {
	Discovery(ctx context.Context, realmName string) (*auth.DiscoveryDocument, error)
	Certs(ctx context.Context, realmName string) (*jose.JSONWebKeySet, error)
	Authorize(ctx context.Context, req auth.AuthorizeRequest) (*sessions.AuthSession, error)
	Authenticate(ctx context.Context, req auth.AuthenticateRequest) (*auth.AuthenticateResult, error)
	ExchangeToken(ctx context.Context, req auth.TokenRequest) (*tokens.JwtToken, error)
	Logout(ctx context.Context, realmName, refreshToken string, info audit.ClientInfo) error
}

type AccountService interface {
	SetupTOTP(ctx context.Context, identity policy.Identity) (*auth.TOTPSetup, error)
	EnrollTOTP(ctx context.Context, identity policy.Identity, secret, code, label string) error
	DisableTOTP(ctx context.Context, identity policy.Identity) error
	GenerateRecoveryCodes(ctx context.Context, identity policy.Identity, format string) ([]string, error)
	BurnRecoveryCode(ctx context.Context, identity policy.Identity, code, format string) error
}

type RealmService interface {
	CreateRealm(ctx context.Context, identity policy.Identity, name string) (*model.Realm, error)
	GetRealm(ctx context.Context, identity policy.Identity, name string) (*model.Realm, error)
	ListRealms(ctx context.Context, identity policy.Identity) ([]*model.Realm, error)
	UpdateRealm(ctx context.Context, identity policy.Identity, name string, newName string) (*model.Realm, error)
	DeleteRealm(ctx context.Context, identity policy.Identity, name string) error
	GetRealmSettings(ctx context.Context, identity policy.Identity, name string) (*model.RealmSetting, error)
	UpdateRealmSettings(ctx context.Context, identity policy.Identity, name string, signingAlgorithm string) (*model.RealmSetting, error)
}

type ClientService interface {
	CreateClient(ctx context.Context, identity policy.Identity, p clients.CreateClientParams) (*model.Client, error)
	GetClient(ctx context.Context, identity policy.Identity, realmName, id string) (*model.Client, error)
	ListClients(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Client, error)
	UpdateClient(ctx context.Context, identity policy.Identity, p clients.UpdateClientParams) (*model.Client, error)
	DeleteClient(ctx context.Context, identity policy.Identity, realmName, id string) error
	RegenerateSecret(ctx context.Context, identity policy.Identity, realmName, id string) (*model.Client, error)
	CreateRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, value string, enabled bool) (*model.RedirectURI, error)
	ListRedirectURIs(ctx context.Context, identity policy.Identity, realmName, clientID string) ([]*model.RedirectURI, error)
	UpdateRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, uriID string, value *string, enabled *bool) (*model.RedirectURI, error)
	DeleteRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, uriID string) error
}

type RoleService interface {
	CreateRole(ctx context.Context, identity policy.Identity, p roles.CreateRoleParams) (*model.Role, error)
	GetRole(ctx context.Context, identity policy.Identity, realmName, roleID string) (*model.Role, error)
	ListRoles(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Role, error)
	ListClientRoles(ctx context.Context, identity policy.Identity, realmName, clientID string) ([]*model.Role, error)
	UpdateRole(ctx context.Context, identity policy.Identity, p roles.UpdateRoleParams) (*model.Role, error)
	UpdateRolePermissions(ctx context.Context, identity policy.Identity, realmName, roleID string, names []string) (*model.Role, error)
	DeleteRole(ctx context.Context, identity policy.Identity, realmName, roleID string) error
}

type UserService interface {
	CreateUser(ctx context.Context, identity policy.Identity, p users.CreateUserParams) (*model.User, error)
	GetUser(ctx context.Context, identity policy.Identity, realmName, userID string) (*model.User, error)
	ListUsers(ctx context.Context, identity policy.Identity, realmName string) ([]*model.User, error)
	UpdateUser(ctx context.Context, identity policy.Identity, p users.UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, identity policy.Identity, realmName, userID string) error
	BulkDeleteUsers(ctx context.Context, identity policy.Identity, realmName string, userIDs []string) (int64, error)
	GetUserRoles(ctx context.Context, identity policy.Identity, realmName, userID string) ([]*model.Role, error)
	AssignRole(ctx context.Context, identity policy.Identity, realmName, userID, roleID string) error
	UnassignRole(ctx context.Context, identity policy.Identity, realmName, userID, roleID string) error
	ResetPassword(ctx context.Context, identity policy.Identity, realmName, userID, password string, temporary bool) error
	ListCredentials(ctx context.Context, identity policy.Identity, realmName, userID string) ([]*model.Credential, error)
	DeleteCredential(ctx context.Context, identity policy.Identity, realmName, userID, credentialID string) error
}

type WebhookService interface {
	CreateWebhook(ctx context.Context, identity policy.Identity, p webhooks.CreateWebhookParams) (*model.Webhook, error)
	GetWebhook(ctx context.Context, identity policy.Identity, realmName, webhookID string) (*model.Webhook, error)
	ListWebhooks(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Webhook, error)
	UpdateWebhook(ctx context.Context, identity policy.Identity, p webhooks.UpdateWebhookParams) (*model.Webhook, error)
	DeleteWebhook(ctx context.Context, identity policy.Identity, realmName, webhookID string) error
}
