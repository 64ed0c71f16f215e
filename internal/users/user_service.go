package users

import (
	"context"
	"net/mail"
	"strings"

	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
)

type RealmRepository interface {
	GetByName(ctx context.Context, name string) (*model.Realm, error)
}

type RoleRepository interface {
	FindByID(ctx context.Context, roleID string) (*model.Role, error)
}

type Authorizer interface {
	Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error
}

type EventNotifier interface {
	Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any)
}

type CredentialManager interface {
	ResetPassword(ctx context.Context, userID string, newPassword string, temporary bool) error
	ListCredentials(ctx context.Context, userID string) ([]*model.Credential, error)
	DeleteCredential(ctx context.Context, userID string, credentialID string) error
}

type TokenRevoker interface {
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type CreateUserParams struct {
	RealmName     string
	Username      string
	Email         string
	EmailVerified bool
	Firstname     string
	Lastname      string
}

type UpdateUserParams struct {
	RealmName     string
	UserID        string
	Email         *string
	EmailVerified *bool
	Firstname     *string
	Lastname      *string
	Enabled       *bool
}

type UserService struct {
	realmRepo   RealmRepository
	userRepo    UserRepository
	roleRepo    RoleRepository
	credentials CredentialManager
	tokens      TokenRevoker
	authorizer  Authorizer
	notifier    EventNotifier
}

func (s *UserService) authorize(ctx context.Context, identity policy.Identity, realmName string, rule policy.Rule) (*model.Realm, error) {
	realm, err := s.realmRepo.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Ensure(ctx, identity, realm, rule); err != nil {
		return nil, err
	}
	return realm, nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func (s *UserService) CreateUser(ctx context.Context, identity policy.Identity, p CreateUserParams) (*model.User, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageUsers)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return nil, ErrUsernameEmpty
	}
	email := strings.TrimSpace(p.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user := &model.User{
		RealmID:       realm.ID,
		Username:      username,
		Email:         email,
		EmailVerified: p.EmailVerified,
		Firstname:     p.Firstname,
		Lastname:      p.Lastname,
		Enabled:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.UserCreated, user.ID, user)
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, identity policy.Identity, realmName, userID string) (*model.User, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewUsers)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
}

func (s *UserService) ListUsers(ctx context.Context, identity policy.Identity, realmName string) ([]*model.User, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewUsers)
	if err != nil {
		return nil, err
	}
	return s.userRepo.ListByRealm(ctx, realm.ID)
}

func (s *UserService) UpdateUser(ctx context.Context, identity policy.Identity, p UpdateUserParams) (*model.User, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageUsers)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, p.UserID)
	if err != nil {
		return nil, err
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if p.EmailVerified != nil {
		user.EmailVerified = *p.EmailVerified
	}
	if p.Firstname != nil {
		user.Firstname = *p.Firstname
	}
	if p.Lastname != nil {
		user.Lastname = *p.Lastname
	}
	if p.Enabled != nil {
		user.Enabled = *p.Enabled
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	if !user.Enabled {
		if err := s.tokens.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.UserUpdated, user.ID, user)
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, identity policy.Identity, realmName, userID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return err
	}
	if user.IsServiceAccount() {
		return ErrServiceAccountReadOnly
	}
	if _, err := s.userRepo.Delete(ctx, realm.ID, user.ID); err != nil {
		return err
	}
	if err := s.tokens.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.UserDeleted, user.ID, nil)
	return nil
}

// BulkDeleteUsers deletes the listed users of the realm and returns how many were removed.
// Unknown ids and service accounts are skipped.
func (s *UserService) BulkDeleteUsers(ctx context.Context, identity policy.Identity, realmName string, userIDs []string) (int64, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, id)
		if err != nil || user.IsServiceAccount() {
			continue
		}
		ids = append(ids, user.ID)
	}
	deleted, err := s.userRepo.Delete(ctx, realm.ID, ids...)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.tokens.RevokeUserRefreshTokens(ctx, id); err != nil {
			return deleted, err
		}
	}
	if deleted > 0 {
		s.notifier.Notify(ctx, realm.ID, webhooks.UserBulkDeleted, "", ids)
	}
	return deleted, nil
}

func (s *UserService) GetUserRoles(ctx context.Context, identity policy.Identity, realmName, userID string) ([]*model.Role, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewUsers)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetRoles(ctx, user.ID)
}

// AssignRole grants a role of the same realm to the user.
func (s *UserService) AssignRole(ctx context.Context, identity policy.Identity, realmName, userID, roleID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return err
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.RealmID != user.RealmID {
		return ErrRoleRealmMismatch
	}
	if err := s.userRepo.AssignRole(ctx, user.ID, role.ID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.UserRoleAssigned, user.ID, map[string]string{"role_id": role.ID})
	return nil
}

func (s *UserService) UnassignRole(ctx context.Context, identity policy.Identity, realmName, userID, roleID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return err
	}
	removed, err := s.userRepo.UnassignRole(ctx, user.ID, roleID)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.notifier.Notify(ctx, realm.ID, webhooks.UserRoleUnassigned, user.ID, map[string]string{"role_id": roleID})
	}
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, identity policy.Identity, realmName, userID, password string, temporary bool) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordEmpty
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return err
	}
	if err := s.credentials.ResetPassword(ctx, user.ID, password, temporary); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.AuthResetPassword, user.ID, nil)
	return nil
}

func (s *UserService) ListCredentials(ctx context.Context, identity policy.Identity, realmName, userID string) ([]*model.Credential, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewUsers)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return nil, err
	}
	return s.credentials.ListCredentials(ctx, user.ID)
}

func (s *UserService) DeleteCredential(ctx context.Context, identity policy.Identity, realmName, userID, credentialID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageUsers)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByRealmAndID(ctx, realm.ID, userID)
	if err != nil {
		return err
	}
	if err := s.credentials.DeleteCredential(ctx, user.ID, credentialID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.UserCredentialsDeleted, user.ID, map[string]string{"credential_id": credentialID})
	return nil
}

func NewUserService(realmRepo RealmRepository, userRepo UserRepository, roleRepo RoleRepository, credentials CredentialManager, tokens TokenRevoker, authorizer Authorizer, notifier EventNotifier) *UserService {
	return &UserService{
		realmRepo:   realmRepo,
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		credentials: credentials,
		tokens:      tokens,
		authorizer:  authorizer,
		notifier:    notifier,
	}
}
