package clients

import (
	"context"
	"testing"

	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/testutil"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRealms map[string]*model.Realm

func (f fakeRealms) GetByName(ctx context.Context, name string) (*model.Realm, error) {
	if realm, ok := f[name]; ok {
		return realm, nil
	}
	return nil, model.ErrNotFound
}

type allowAll struct{}

func (allowAll) Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error {
	return nil
}

type recordingNotifier struct {
	triggers []webhooks.Trigger
}

func (r *recordingNotifier) Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any) {
	r.triggers = append(r.triggers, trigger)
}

var caller = policy.NewUserIdentity(&model.User{ID: "admin"})

func newTestClientService(t *testing.T) (*ClientService, *gorm.DB, *recordingNotifier) {
	db := testutil.NewTestDB(t)
	realms := fakeRealms{"acme": {ID: "realm-1", Name: "acme"}}
	notifier := &recordingNotifier{}
	svc := NewClientService(db, realms, NewClientRepository(db), NewRedirectURIRepository(db), users.NewUserRepository(db), allowAll{}, notifier)
	return svc, db, notifier
}

func TestCreateConfidentialClient(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{
		RealmName:             "acme",
		ClientID:              "backend",
		ServiceAccountEnabled: true,
		RedirectURIs:          []string{"https://app.example.com/cb"},
	})
	require.NoError(t, err)
	require.NotNil(t, client.Secret)
	assert.Len(t, *client.Secret, 32)
	assert.Equal(t, ClientTypeConfidential, client.ClientType)

	sa, err := users.NewUserRepository(db).GetServiceAccount(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "service-account-backend", sa.Username)

	uris, err := svc.ListRedirectURIs(ctx, caller, "acme", client.ID)
	require.NoError(t, err)
	require.Len(t, uris, 1)

	_, err = svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "backend"})
	assert.ErrorIs(t, err, ErrClientAlreadyExists)
}

func TestCreatePublicClient(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "spa", PublicClient: true})
	require.NoError(t, err)
	assert.Nil(t, client.Secret)

	_, err = svc.RegenerateSecret(ctx, caller, "acme", client.ID)
	assert.ErrorIs(t, err, ErrPublicClientSecret)

	_, err = svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "spa2", PublicClient: true, ServiceAccountEnabled: true})
	assert.ErrorIs(t, err, ErrPublicServiceAccount)

	_, err = svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: " "})
	assert.ErrorIs(t, err, ErrClientIDEmpty)
}

func TestRegenerateSecret(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "backend"})
	require.NoError(t, err)
	old := *client.Secret

	updated, err := svc.RegenerateSecret(ctx, caller, "acme", client.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, *updated.Secret)

	stored, err := svc.GetClient(ctx, caller, "acme", client.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated.Secret, *stored.Secret)
}

func TestEnableServiceAccountOnUpdate(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "backend"})
	require.NoError(t, err)

	enabled := true
	_, err = svc.UpdateClient(ctx, caller, UpdateClientParams{RealmName: "acme", ID: client.ID, ServiceAccountEnabled: &enabled})
	require.NoError(t, err)
	_, err = svc.UpdateClient(ctx, caller, UpdateClientParams{RealmName: "acme", ID: client.ID, ServiceAccountEnabled: &enabled})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Where("client_id = ?", client.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteClientCascades(t *testing.T) {
	ctx := context.Background()
	svc, db, notifier := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{
		RealmName:             "acme",
		ClientID:              "backend",
		ServiceAccountEnabled: true,
		RedirectURIs:          []string{"https://app.example.com/cb"},
	})
	require.NoError(t, err)
	role := &model.Role{RealmID: "realm-1", ClientID: &client.ID, Name: "reader"}
	require.NoError(t, db.Create(role).Error)

	require.NoError(t, svc.DeleteClient(ctx, caller, "acme", client.ID))

	for _, m := range []any{&model.Client{}, &model.RedirectURI{}, &model.Role{}, &model.User{}} {
		var count int64
		require.NoError(t, db.Model(m).Count(&count).Error)
		assert.Zero(t, count, "%T", m)
	}
	assert.ErrorIs(t, svc.DeleteClient(ctx, caller, "acme", client.ID), ErrClientNotFound)
	assert.Contains(t, notifier.triggers, webhooks.ClientDeleted)
}

func TestRedirectURICrud(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestClientService(t)

	client, err := svc.CreateClient(ctx, caller, CreateClientParams{RealmName: "acme", ClientID: "web"})
	require.NoError(t, err)

	uri, err := svc.CreateRedirectURI(ctx, caller, "acme", client.ID, `https://.*\.example\.com/cb`, true)
	require.NoError(t, err)

	_, err = svc.CreateRedirectURI(ctx, caller, "acme", client.ID, "https://[", true)
	assert.ErrorIs(t, err, ErrInvalidRedirectURI)

	disabled := false
	updated, err := svc.UpdateRedirectURI(ctx, caller, "acme", client.ID, uri.ID, nil, &disabled)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	require.NoError(t, svc.DeleteRedirectURI(ctx, caller, "acme", client.ID, uri.ID))
	assert.ErrorIs(t, svc.DeleteRedirectURI(ctx, caller, "acme", client.ID, uri.ID), ErrRedirectURINotFound)
}

func TestRedirectAllowed(t *testing.T) {
	uris := []*model.RedirectURI{
		{Value: "https://app.example.com/cb", Enabled: true},
		{Value: `https://.*\.tenant\.io/callback`, Enabled: true},
		{Value: "https://disabled.example.com/cb", Enabled: false},
	}
	assert.True(t, RedirectAllowed(uris, "https://app.example.com/cb"))
	assert.True(t, RedirectAllowed(uris, "https://one.tenant.io/callback"))
	assert.False(t, RedirectAllowed(uris, "https://one.tenant.io/callback/extra"))
	assert.False(t, RedirectAllowed(uris, "https://disabled.example.com/cb"))
	assert.False(t, RedirectAllowed(uris, "https://evil.com/?https://app.example.com/cb"))
	assert.False(t, RedirectAllowed(uris, ""))
}
