package roles

import (
	"context"
	"testing"

	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/testutil"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRealms map[string]*model.Realm

func (f fakeRealms) GetByName(ctx context.Context, name string) (*model.Realm, error) {
	if realm, ok := f[name]; ok {
		return realm, nil
	}
	return nil, model.ErrNotFound
}

type fakeClients map[string]*model.Client

func (f fakeClients) GetByID(ctx context.Context, realmID string, id string) (*model.Client, error) {
	if c, ok := f[id]; ok && c.RealmID == realmID {
		return c, nil
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

func newTestRoleService(t *testing.T) (*RoleService, *recordingNotifier) {
	realms := fakeRealms{"acme": {ID: "realm-1", Name: "acme"}}
	clients := fakeClients{"client-1": {ID: "client-1", RealmID: "realm-1", ClientID: "web"}}
	notifier := &recordingNotifier{}
	svc := NewRoleService(realms, clients, NewRoleRepository(testutil.NewTestDB(t)), allowAll{}, notifier)
	return svc, notifier
}

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestRoleService(t)
	caller := policy.NewUserIdentity(&model.User{ID: "admin"})

	role, err := svc.CreateRole(ctx, caller, CreateRoleParams{
		RealmName:   "acme",
		Name:        "support",
		Permissions: []string{"view_users", "view_clients"},
	})
	require.NoError(t, err)
	assert.Equal(t, permissions.Of(permissions.ViewUsers, permissions.ViewClients).Bits(), role.Permissions)

	_, err = svc.CreateRole(ctx, caller, CreateRoleParams{RealmName: "acme", Name: "support"})
	assert.ErrorIs(t, err, ErrRoleAlreadyExists)

	clientID := "client-1"
	clientRole, err := svc.CreateRole(ctx, caller, CreateRoleParams{RealmName: "acme", ClientID: &clientID, Name: "support"})
	require.NoError(t, err)

	updated, err := svc.UpdateRolePermissions(ctx, caller, "acme", role.ID, []string{"manage_users"})
	require.NoError(t, err)
	assert.Equal(t, uint64(permissions.ManageUsers), updated.Permissions)

	_, err = svc.UpdateRolePermissions(ctx, caller, "acme", role.ID, []string{"fly"})
	assert.ErrorIs(t, err, permissions.ErrUnknownPermission)

	list, err := svc.ListRoles(ctx, caller, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	clientRoles, err := svc.ListClientRoles(ctx, caller, "acme", clientID)
	require.NoError(t, err)
	require.Len(t, clientRoles, 1)
	assert.Equal(t, clientRole.ID, clientRoles[0].ID)

	require.NoError(t, svc.DeleteRole(ctx, caller, "acme", role.ID))
	_, err = svc.GetRole(ctx, caller, "acme", role.ID)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.ErrorIs(t, svc.DeleteRole(ctx, caller, "acme", role.ID), ErrRoleNotFound)

	assert.Equal(t, []webhooks.Trigger{
		webhooks.RoleCreated, webhooks.ClientRoleCreated, webhooks.RoleUpdated, webhooks.RoleDeleted,
	}, notifier.triggers)
}

func TestCreateRoleForUnknownClient(t *testing.T) {
	svc, _ := newTestRoleService(t)
	clientID := "missing"
	_, err := svc.CreateRole(context.Background(), policy.NewUserIdentity(&model.User{}), CreateRoleParams{RealmName: "acme", ClientID: &clientID, Name: "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
