package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
)

type UserRepository interface {
	GetServiceAccount(ctx context.Context, clientID string) (*model.User, error)
	GetRoles(ctx context.Context, userID string) ([]*model.Role, error)
}

type RealmRepository interface {
	GetByID(ctx context.Context, realmID string) (*model.Realm, error)
}

type ClientRepository interface {
	GetByClientID(ctx context.Context, realmID string, clientID string) (*model.Client, error)
}

// Enforcer computes the effective permissions of an identity in a realm.
type Enforcer struct {
	userRepo   UserRepository
	realmRepo  RealmRepository
	clientRepo ClientRepository
}

// ResolveUser maps an identity to the user whose roles apply. Clients act through their service account.
func (e *Enforcer) ResolveUser(ctx context.Context, identity Identity) (*model.User, error) {
	switch identity.Kind() {
	case IdentityUser:
		return identity.User(), nil
	case IdentityClient:
		user, err := e.userRepo.GetServiceAccount(ctx, identity.Client().ID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrServiceAccountNotFound
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, NewForbiddenError("unknown identity")
}

// PermissionsForRealm returns the union of the user's role permissions that apply to target.
// Inside the home realm every role applies. Users of the master realm reach other
// realms through realm scoped roles and roles of the master client "{target}-realm".
// Users of any other realm have no permissions outside it.
func (e *Enforcer) PermissionsForRealm(ctx context.Context, user *model.User, target *model.Realm) (permissions.Permissions, error) {
	roles, err := e.userRepo.GetRoles(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if user.RealmID == target.ID {
		return unionRoles(roles, func(*model.Role) bool { return true }), nil
	}

	home, err := e.realmRepo.GetByID(ctx, user.RealmID)
	if err != nil {
		return 0, err
	}
	if home.Name != params.MasterRealmName {
		return 0, nil
	}
	var masterClientID string
	masterClient, err := e.clientRepo.GetByClientID(ctx, home.ID, target.Name+params.RealmClientSuffix)
	switch {
	case err == nil:
		masterClientID = masterClient.ID
	case !errors.Is(err, model.ErrNotFound):
		return 0, err
	}
	return unionRoles(roles, func(role *model.Role) bool {
		if role.RealmID != home.ID {
			return false
		}
		return role.ClientID == nil || (masterClientID != "" && *role.ClientID == masterClientID)
	}), nil
}

func unionRoles(roles []*model.Role, applies func(*model.Role) bool) permissions.Permissions {
	var perms permissions.Permissions
	for _, role := range roles {
		if applies(role) {
			perms = perms.Union(permissions.FromBitfield(role.Permissions))
		}
	}
	return perms
}

// Can reports whether the identity holds at least one of the required permissions in target.
func (e *Enforcer) Can(ctx context.Context, identity Identity, target *model.Realm, required ...permissions.Permission) (bool, error) {
	user, err := e.ResolveUser(ctx, identity)
	if err != nil {
		return false, err
	}
	perms, err := e.PermissionsForRealm(ctx, user, target)
	if err != nil {
		return false, err
	}
	return perms.HasOneOf(required...), nil
}

// Ensure fails with a ForbiddenError when the identity may not perform rule in target.
func (e *Enforcer) Ensure(ctx context.Context, identity Identity, target *model.Realm, rule Rule) error {
	ok, err := e.Can(ctx, identity, target, rule.Required...)
	if err != nil {
		return err
	}
	if !ok {
		return NewForbiddenError(fmt.Sprintf("insufficient permissions to %s in realm %s", rule.Action, target.Name))
	}
	return nil
}

func NewEnforcer(userRepo UserRepository, realmRepo RealmRepository, clientRepo ClientRepository) *Enforcer {
	return &Enforcer{
		userRepo:   userRepo,
		realmRepo:  realmRepo,
		clientRepo: clientRepo,
	}
}
