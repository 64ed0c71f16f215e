package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
)

type RealmRepository interface {
	GetByName(ctx context.Context, name string) (*model.Realm, error)
}

type ClientRepository interface {
	GetByID(ctx context.Context, realmID string, id string) (*model.Client, error)
}

type Authorizer interface {
	Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error
}

type EventNotifier interface {
	Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any)
}

type CreateRoleParams struct {
	RealmName   string
	ClientID    *string // internal id of the owning client, nil for realm roles
	Name        string
	Description string
	Permissions []string
}

type UpdateRoleParams struct {
	RealmName   string
	RoleID      string
	Name        *string
	Description *string
}

type RoleService struct {
	realmRepo  RealmRepository
	clientRepo ClientRepository
	roleRepo   RoleRepository
	authorizer Authorizer
	notifier   EventNotifier
}

func (s *RoleService) authorize(ctx context.Context, identity policy.Identity, realmName string, rule policy.Rule) (*model.Realm, error) {
	realm, err := s.realmRepo.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Ensure(ctx, identity, realm, rule); err != nil {
		return nil, err
	}
	return realm, nil
}

func roleTrigger(role *model.Role, realmTrigger, clientTrigger webhooks.Trigger) webhooks.Trigger {
	if role.ClientID != nil {
		return clientTrigger
	}
	return realmTrigger
}

func (s *RoleService) CreateRole(ctx context.Context, identity policy.Identity, p CreateRoleParams) (*model.Role, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageRoles)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrRoleNameEmpty
	}
	perms, err := permissions.ParseNames(p.Permissions)
	if err != nil {
		return nil, err
	}
	if p.ClientID != nil {
		if _, err := s.clientRepo.GetByID(ctx, realm.ID, *p.ClientID); err != nil {
			return nil, err
		}
	}
	_, err = s.roleRepo.GetByName(ctx, realm.ID, p.ClientID, name)
	if err == nil {
		return nil, ErrRoleAlreadyExists
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, err
	}

	role := &model.Role{
		RealmID:     realm.ID,
		ClientID:    p.ClientID,
		Name:        name,
		Description: p.Description,
		Permissions: perms.Bits(),
	}
	if err := s.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, roleTrigger(role, webhooks.RoleCreated, webhooks.ClientRoleCreated), role.ID, role)
	return role, nil
}

func (s *RoleService) GetRole(ctx context.Context, identity policy.Identity, realmName, roleID string) (*model.Role, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewRoles)
	if err != nil {
		return nil, err
	}
	return s.roleRepo.GetByID(ctx, realm.ID, roleID)
}

func (s *RoleService) ListRoles(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Role, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewRoles)
	if err != nil {
		return nil, err
	}
	return s.roleRepo.ListByRealm(ctx, realm.ID)
}

func (s *RoleService) ListClientRoles(ctx context.Context, identity policy.Identity, realmName, clientID string) ([]*model.Role, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewRoles)
	if err != nil {
		return nil, err
	}
	return s.roleRepo.ListByClient(ctx, realm.ID, clientID)
}

func (s *RoleService) UpdateRole(ctx context.Context, identity policy.Identity, p UpdateRoleParams) (*model.Role, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageRoles)
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.GetByID(ctx, realm.ID, p.RoleID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, ErrRoleNameEmpty
		}
		role.Name = name
	}
	if p.Description != nil {
		role.Description = *p.Description
	}
	if err := s.roleRepo.Save(ctx, role); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, roleTrigger(role, webhooks.RoleUpdated, webhooks.ClientRoleUpdated), role.ID, role)
	return role, nil
}

// UpdateRolePermissions replaces the permission set of the role.
func (s *RoleService) UpdateRolePermissions(ctx context.Context, identity policy.Identity, realmName, roleID string, names []string) (*model.Role, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageRoles)
	if err != nil {
		return nil, err
	}
	perms, err := permissions.ParseNames(names)
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.GetByID(ctx, realm.ID, roleID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms.Bits()
	if err := s.roleRepo.Save(ctx, role); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, roleTrigger(role, webhooks.RoleUpdated, webhooks.ClientRoleUpdated), role.ID, role)
	return role, nil
}

func (s *RoleService) DeleteRole(ctx context.Context, identity policy.Identity, realmName, roleID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageRoles)
	if err != nil {
		return err
	}
	if err := s.roleRepo.Delete(ctx, realm.ID, roleID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RoleDeleted, roleID, nil)
	return nil
}

func NewRoleService(realmRepo RealmRepository, clientRepo ClientRepository, roleRepo RoleRepository, authorizer Authorizer, notifier EventNotifier) *RoleService {
	return &RoleService{
		realmRepo:  realmRepo,
		clientRepo: clientRepo,
		roleRepo:   roleRepo,
		authorizer: authorizer,
		notifier:   notifier,
	}
}
