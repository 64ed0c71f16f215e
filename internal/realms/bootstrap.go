package realms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/permissions"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"gorm.io/gorm"
)

type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

type BootstrapResult struct {
	Realm       *model.Realm
	AdminUser   *model.User
	AdminClient *model.Client
}

func (s *RealmService) ensureClient(ctx context.Context, repo clients.ClientRepository, realmID, clientID string, public bool) (*model.Client, error) {
	client, err := repo.GetByClientID(ctx, realmID, clientID)
	if !errors.Is(err, clients.ErrClientNotFound) {
		return client, err
	}
	client, err = clients.NewClient(realmID, clientID, clientID, public)
	if err != nil {
		return nil, err
	}
	client.DirectAccessGrantsEnabled = public
	return client, repo.Create(ctx, client)
}

// Bootstrap seeds the master realm, its signing key, the admin-cli and
// master-realm clients, the master-realm role and the admin user. Existing
// rows are kept so it is safe to run on every start.
func (s *RealmService) Bootstrap(ctx context.Context, cfg BootstrapConfig) (*BootstrapResult, error) {
	result := &BootstrapResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		realmRepo := s.realmRepo.WithTx(tx)
		master, err := realmRepo.GetByName(ctx, params.MasterRealmName)
		if errors.Is(err, ErrRealmNotFound) {
			master = &model.Realm{Name: params.MasterRealmName}
			if err := realmRepo.Create(ctx, master); err != nil {
				return err
			}
			err = realmRepo.CreateSettings(ctx, &model.RealmSetting{RealmID: master.ID, DefaultSigningAlgorithm: params.DefaultSigningAlgorithm})
			slog.Info("Created master realm", "realm_id", master.ID)
		}
		if err != nil {
			return err
		}
		result.Realm = master

		clientRepo := s.clientRepo.WithTx(tx)
		if result.AdminClient, err = s.ensureClient(ctx, clientRepo, master.ID, params.DefaultAdminClientID, true); err != nil {
			return err
		}
		if _, err = s.ensureClient(ctx, clientRepo, master.ID, masterClientID(params.MasterRealmName), false); err != nil {
			return err
		}

		roleRepo := s.roleRepo.WithTx(tx)
		roleName := masterClientID(params.MasterRealmName)
		role, err := roleRepo.GetByName(ctx, master.ID, nil, roleName)
		if errors.Is(err, roles.ErrRoleNotFound) {
			role = &model.Role{
				RealmID:     master.ID,
				Name:        roleName,
				Description: "Administrator of every realm",
				Permissions: permissions.Of(permissions.ManageRealm).Bits(),
			}
			err = roleRepo.Create(ctx, role)
		}
		if err != nil {
			return err
		}

		userRepo := s.userRepo.WithTx(tx)
		admin, err := userRepo.GetByUsername(ctx, master.ID, cfg.AdminUsername)
		if errors.Is(err, users.ErrUserNotFound) {
			admin = &model.User{
				RealmID:       master.ID,
				Username:      cfg.AdminUsername,
				Email:         cfg.AdminEmail,
				EmailVerified: cfg.AdminEmail != "",
				Enabled:       true,
			}
			err = userRepo.Create(ctx, admin)
			slog.Info("Created admin user", "username", cfg.AdminUsername)
		}
		if err != nil {
			return err
		}
		result.AdminUser = admin
		return userRepo.AssignRole(ctx, admin.ID, role.ID)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.keys.GetOrGenerateKey(ctx, result.Realm.ID); err != nil {
		return nil, err
	}
	hasPassword, err := s.credentials.HasCredential(ctx, result.AdminUser.ID, model.CredentialTypePassword)
	if err != nil {
		return nil, err
	}
	if !hasPassword && cfg.AdminPassword != "" {
		if err := s.credentials.ResetPassword(ctx, result.AdminUser.ID, cfg.AdminPassword, false); err != nil {
			return nil, err
		}
	}
	return result, nil
}
