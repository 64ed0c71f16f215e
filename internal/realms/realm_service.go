package realms

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"gorm.io/gorm"
)

var realmNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// realmAdminPermissions are granted to the creator of a realm through the
// role scoped to the realm's master client.
var realmAdminPermissions = permissions.Of(
	permissions.ManageRealm,
	permissions.ManageClients,
	permissions.ManageRoles,
	permissions.ManageUsers,
)

type Authorizer interface {
	Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error
	Can(ctx context.Context, identity policy.Identity, target *model.Realm, required ...permissions.Permission) (bool, error)
	ResolveUser(ctx context.Context, identity policy.Identity) (*model.User, error)
}

type EventNotifier interface {
	Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any)
}

type KeyManager interface {
	GetOrGenerateKey(ctx context.Context, realmID string) (*tokens.KeyPair, error)
	Forget(realmID string)
}

type PasswordManager interface {
	HasCredential(ctx context.Context, userID string, credentialType string) (bool, error)
	ResetPassword(ctx context.Context, userID string, newPassword string, temporary bool) error
}

type RealmService struct {
	db          *gorm.DB
	realmRepo   RealmRepository
	clientRepo  clients.ClientRepository
	roleRepo    roles.RoleRepository
	userRepo    users.UserRepository
	keys        KeyManager
	credentials PasswordManager
	authorizer  Authorizer
	notifier    EventNotifier
}

func validateRealmName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !realmNamePattern.MatchString(name) {
		return "", ErrInvalidRealmName
	}
	return name, nil
}

func masterClientID(realmName string) string {
	return realmName + params.RealmClientSuffix
}

func (s *RealmService) authorize(ctx context.Context, identity policy.Identity, realmName string, rule policy.Rule) (*model.Realm, error) {
	realm, err := s.realmRepo.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Ensure(ctx, identity, realm, rule); err != nil {
		return nil, err
	}
	return realm, nil
}

// CreateRealm creates the realm with its settings, the master client
// {name}-realm and the {name}-realm-admin role, which is granted to the caller.
func (s *RealmService) CreateRealm(ctx context.Context, identity policy.Identity, name string) (*model.Realm, error) {
	name, err := validateRealmName(name)
	if err != nil {
		return nil, err
	}
	master, err := s.authorize(ctx, identity, params.MasterRealmName, policy.ManageRealm)
	if err != nil {
		return nil, err
	}
	creator, err := s.authorizer.ResolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	realm := &model.Realm{Name: name}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		realmRepo := s.realmRepo.WithTx(tx)
		if err := realmRepo.Create(ctx, realm); err != nil {
			return err
		}
		settings := &model.RealmSetting{RealmID: realm.ID, DefaultSigningAlgorithm: params.DefaultSigningAlgorithm}
		if err := realmRepo.CreateSettings(ctx, settings); err != nil {
			return err
		}

		client, err := clients.NewClient(master.ID, masterClientID(name), name+" Realm", false)
		if err != nil {
			return err
		}
		if err := s.clientRepo.WithTx(tx).Create(ctx, client); err != nil {
			return err
		}
		role := &model.Role{
			RealmID:     master.ID,
			ClientID:    &client.ID,
			Name:        name + params.RealmAdminRoleNameSuffix,
			Description: "Administrator of realm " + name,
			Permissions: realmAdminPermissions.Bits(),
		}
		if err := s.roleRepo.WithTx(tx).Create(ctx, role); err != nil {
			return err
		}
		if creator.RealmID != master.ID {
			return nil
		}
		return s.userRepo.WithTx(tx).AssignRole(ctx, creator.ID, role.ID)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, master.ID, webhooks.RealmCreated, realm.ID, realm)
	return realm, nil
}

func (s *RealmService) GetRealm(ctx context.Context, identity policy.Identity, name string) (*model.Realm, error) {
	return s.authorize(ctx, identity, name, policy.ViewRealm)
}

// ListRealms returns the realms the caller may view.
func (s *RealmService) ListRealms(ctx context.Context, identity policy.Identity) ([]*model.Realm, error) {
	all, err := s.realmRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]*model.Realm, 0, len(all))
	for _, realm := range all {
		ok, err := s.authorizer.Can(ctx, identity, realm, policy.ViewRealm.Required...)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, realm)
		}
	}
	return visible, nil
}

// UpdateRealm renames the realm together with its master client and admin role.
func (s *RealmService) UpdateRealm(ctx context.Context, identity policy.Identity, name string, newName string) (*model.Realm, error) {
	newName, err := validateRealmName(newName)
	if err != nil {
		return nil, err
	}
	realm, err := s.authorize(ctx, identity, name, policy.ManageRealm)
	if err != nil {
		return nil, err
	}
	if realm.Name == params.MasterRealmName {
		return nil, ErrMasterRealmImmutable
	}
	if newName == realm.Name {
		return realm, nil
	}
	master, err := s.realmRepo.GetByName(ctx, params.MasterRealmName)
	if err != nil {
		return nil, err
	}

	oldName := realm.Name
	realm.Name = newName
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.realmRepo.WithTx(tx).Save(ctx, realm); err != nil {
			return err
		}
		clientRepo := s.clientRepo.WithTx(tx)
		client, err := clientRepo.GetByClientID(ctx, master.ID, masterClientID(oldName))
		if errors.Is(err, clients.ErrClientNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		client.ClientID = masterClientID(newName)
		client.Name = newName + " Realm"
		if err := clientRepo.Save(ctx, client); err != nil {
			return err
		}
		roleRepo := s.roleRepo.WithTx(tx)
		role, err := roleRepo.GetByName(ctx, master.ID, &client.ID, oldName+params.RealmAdminRoleNameSuffix)
		if errors.Is(err, roles.ErrRoleNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		role.Name = newName + params.RealmAdminRoleNameSuffix
		return roleRepo.Save(ctx, role)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RealmUpdated, realm.ID, realm)
	return realm, nil
}

// DeleteRealm removes the realm with everything it owns, including its master
// client, signing key and webhooks.
func (s *RealmService) DeleteRealm(ctx context.Context, identity policy.Identity, name string) error {
	if name == params.MasterRealmName {
		return ErrMasterRealmUndeletable
	}
	realm, err := s.authorize(ctx, identity, name, policy.ManageRealm)
	if err != nil {
		return err
	}
	master, err := s.realmRepo.GetByName(ctx, params.MasterRealmName)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clientRepo := s.clientRepo.WithTx(tx)
		client, err := clientRepo.GetByClientID(ctx, master.ID, masterClientID(realm.Name))
		if err == nil {
			err = clientRepo.Delete(ctx, master.ID, client.ID)
		}
		if err != nil && !errors.Is(err, clients.ErrClientNotFound) {
			return err
		}
		if err := tokens.NewKeyRepository(tx).DeleteByRealm(ctx, realm.ID); err != nil {
			return err
		}
		if err := webhooks.NewWebhookRepository(tx).DeleteByRealm(ctx, realm.ID); err != nil {
			return err
		}
		return s.realmRepo.WithTx(tx).Delete(ctx, realm.ID)
	})
	if err != nil {
		return err
	}
	s.keys.Forget(realm.ID)
	s.notifier.Notify(ctx, master.ID, webhooks.RealmDeleted, realm.ID, nil)
	return nil
}

func (s *RealmService) GetRealmSettings(ctx context.Context, identity policy.Identity, name string) (*model.RealmSetting, error) {
	realm, err := s.authorize(ctx, identity, name, policy.ViewRealm)
	if err != nil {
		return nil, err
	}
	return s.realmRepo.GetSettings(ctx, realm.ID)
}

func (s *RealmService) UpdateRealmSettings(ctx context.Context, identity policy.Identity, name string, signingAlgorithm string) (*model.RealmSetting, error) {
	realm, err := s.authorize(ctx, identity, name, policy.ManageRealm)
	if err != nil {
		return nil, err
	}
	if signingAlgorithm != params.DefaultSigningAlgorithm {
		return nil, ErrUnsupportedSigningAlgorithm
	}
	settings, err := s.realmRepo.GetSettings(ctx, realm.ID)
	if err != nil {
		return nil, err
	}
	settings.DefaultSigningAlgorithm = signingAlgorithm
	if err := s.realmRepo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RealmSettingsUpdated, realm.ID, settings)
	return settings, nil
}

func NewRealmService(db *gorm.DB, realmRepo RealmRepository, clientRepo clients.ClientRepository, roleRepo roles.RoleRepository, userRepo users.UserRepository, keys KeyManager, credentials PasswordManager, authorizer Authorizer, notifier EventNotifier) *RealmService {
	return &RealmService{
		db:          db,
		realmRepo:   realmRepo,
		clientRepo:  clientRepo,
		roleRepo:    roleRepo,
		userRepo:    userRepo,
		keys:        keys,
		credentials: credentials,
		authorizer:  authorizer,
		notifier:    notifier,
	}
}
