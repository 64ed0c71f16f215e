package api

import (
	"time"

	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/model"
)

const apiVersion = "1.0"

// Google JSON API style response structure. Errors are rendered by
// middlewares.ErrorHandler in the same {"error": {...}} shape.
type APIResponse struct {
	APIVersion string `json:"apiVersion"`
	Data       any    `json:"data,omitempty"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{APIVersion: apiVersion, Data: data}
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type realmResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRealmResponse(realm *model.Realm) realmResponse {
	return realmResponse{
		ID:        realm.ID,
		Name:      realm.Name,
		CreatedAt: realm.CreatedAt,
		UpdatedAt: realm.UpdatedAt,
	}
}

type realmSettingsResponse struct {
	RealmID                 string    `json:"realm_id"`
	DefaultSigningAlgorithm string    `json:"default_signing_algorithm"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type clientResponse struct {
	ID                        string    `json:"id"`
	RealmID                   string    `json:"realm_id"`
	ClientID                  string    `json:"client_id"`
	Name                      string    `json:"name"`
	Secret                    string    `json:"secret,omitempty"`
	Enabled                   bool      `json:"enabled"`
	Protocol                  string    `json:"protocol"`
	PublicClient              bool      `json:"public_client"`
	ServiceAccountEnabled     bool      `json:"service_account_enabled"`
	DirectAccessGrantsEnabled bool      `json:"direct_access_grants_enabled"`
	ClientType                string    `json:"client_type"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// newClientResponse only includes the secret when withSecret is set.
func newClientResponse(client *model.Client, withSecret bool) clientResponse {
	resp := clientResponse{
		ID:                        client.ID,
		RealmID:                   client.RealmID,
		ClientID:                  client.ClientID,
		Name:                      client.Name,
		Enabled:                   client.Enabled,
		Protocol:                  client.Protocol,
		PublicClient:              client.PublicClient,
		ServiceAccountEnabled:     client.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: client.DirectAccessGrantsEnabled,
		ClientType:                client.ClientType,
		CreatedAt:                 client.CreatedAt,
		UpdatedAt:                 client.UpdatedAt,
	}
	if withSecret && client.Secret != nil {
		resp.Secret = *client.Secret
	}
	return resp
}

type redirectURIResponse struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Value     string    `json:"value"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRedirectURIResponse(uri *model.RedirectURI) redirectURIResponse {
	return redirectURIResponse{
		ID:        uri.ID,
		ClientID:  uri.ClientID,
		Value:     uri.Value,
		Enabled:   uri.Enabled,
		CreatedAt: uri.CreatedAt,
		UpdatedAt: uri.UpdatedAt,
	}
}

type roleResponse struct {
	ID          string    `json:"id"`
	RealmID     string    `json:"realm_id"`
	ClientID    *string   `json:"client_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newRoleResponse(role *model.Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		RealmID:     role.RealmID,
		ClientID:    role.ClientID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: permissions.FromBitfield(role.Permissions).Names(),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

type userResponse struct {
	ID            string    `json:"id"`
	RealmID       string    `json:"realm_id"`
	ClientID      *string   `json:"client_id,omitempty"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Firstname     string    `json:"firstname"`
	Lastname      string    `json:"lastname"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:            user.ID,
		RealmID:       user.RealmID,
		ClientID:      user.ClientID,
		Username:      user.Username,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Firstname:     user.Firstname,
		Lastname:      user.Lastname,
		Enabled:       user.Enabled,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// credentialResponse never carries secret material.
type credentialResponse struct {
	ID             string    `json:"id"`
	CredentialType string    `json:"credential_type"`
	Label          string    `json:"label"`
	Temporary      bool      `json:"temporary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newCredentialResponse(cred *model.Credential) credentialResponse {
	return credentialResponse{
		ID:             cred.ID,
		CredentialType: cred.CredentialType,
		Label:          cred.Label,
		Temporary:      cred.CredentialData.Data().Temporary,
		CreatedAt:      cred.CreatedAt,
	}
}

type webhookResponse struct {
	ID           string    `json:"id"`
	RealmID      string    `json:"realm_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Endpoint     string    `json:"endpoint"`
	Triggers     []string  `json:"triggers"`
	SubscribedAt time.Time `json:"subscribed_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newWebhookResponse(webhook *model.Webhook) webhookResponse {
	return webhookResponse{
		ID:           webhook.ID,
		RealmID:      webhook.RealmID,
		Name:         webhook.Name,
		Description:  webhook.Description,
		Endpoint:     webhook.Endpoint,
		Triggers:     []string(webhook.Triggers),
		SubscribedAt: webhook.SubscribedAt,
		UpdatedAt:    webhook.UpdatedAt,
	}
}

func mapSlice[T any, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
