package clients

import (
	"context"
	"errors"
	"strings"

	"github.com/khanghh/krealm/internal/common"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"gorm.io/gorm"
)

const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

type RealmRepository interface {
	GetByName(ctx context.Context, name string) (*model.Realm, error)
}

type Authorizer interface {
	Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error
}

type EventNotifier interface {
	Notify(ctx context.Context, realmID string, trigger webhooks.Trigger, resourceID string, data any)
}

type CreateClientParams struct {
	RealmName                 string
	ClientID                  string
	Name                      string
	PublicClient              bool
	ServiceAccountEnabled     bool
	DirectAccessGrantsEnabled bool
	RedirectURIs              []string
}

type UpdateClientParams struct {
	RealmName                 string
	ID                        string
	Name                      *string
	Enabled                   *bool
	ServiceAccountEnabled     *bool
	DirectAccessGrantsEnabled *bool
}

type ClientService struct {
	db           *gorm.DB
	realmRepo    RealmRepository
	clientRepo   ClientRepository
	redirectRepo RedirectURIRepository
	userRepo     users.UserRepository
	authorizer   Authorizer
	notifier     EventNotifier
}

func generateClientSecret() (*string, error) {
	secret, err := common.GenerateSecret(params.ClientSecretLength)
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

// NewClient builds a client row. Confidential clients get a generated secret.
func NewClient(realmID, clientID, name string, public bool) (*model.Client, error) {
	client := &model.Client{
		RealmID:      realmID,
		ClientID:     clientID,
		Name:         name,
		Enabled:      true,
		Protocol:     params.OpenIDConnectProtocol,
		PublicClient: public,
		ClientType:   ClientTypeConfidential,
	}
	if public {
		client.ClientType = ClientTypePublic
		return client, nil
	}
	secret, err := generateClientSecret()
	if err != nil {
		return nil, err
	}
	client.Secret = secret
	return client, nil
}

// NewServiceAccount builds the user that acts on behalf of the client.
func NewServiceAccount(client *model.Client) *model.User {
	return &model.User{
		RealmID:  client.RealmID,
		ClientID: &client.ID,
		Username: params.ServiceAccountUserPrefix + client.ClientID,
		Enabled:  true,
	}
}

func (s *ClientService) authorize(ctx context.Context, identity policy.Identity, realmName string, rule policy.Rule) (*model.Realm, error) {
	realm, err := s.realmRepo.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Ensure(ctx, identity, realm, rule); err != nil {
		return nil, err
	}
	return realm, nil
}

func (s *ClientService) CreateClient(ctx context.Context, identity policy.Identity, p CreateClientParams) (*model.Client, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageClients)
	if err != nil {
		return nil, err
	}
	clientID := strings.TrimSpace(p.ClientID)
	if clientID == "" {
		return nil, ErrClientIDEmpty
	}
	if p.PublicClient && p.ServiceAccountEnabled {
		return nil, ErrPublicServiceAccount
	}
	uris := make([]string, 0, len(p.RedirectURIs))
	for _, raw := range p.RedirectURIs {
		value, err := validateRedirectURI(raw)
		if err != nil {
			return nil, err
		}
		uris = append(uris, value)
	}

	client, err := NewClient(realm.ID, clientID, p.Name, p.PublicClient)
	if err != nil {
		return nil, err
	}
	client.ServiceAccountEnabled = p.ServiceAccountEnabled
	client.DirectAccessGrantsEnabled = p.DirectAccessGrantsEnabled

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.clientRepo.WithTx(tx).Create(ctx, client); err != nil {
			return err
		}
		for _, value := range uris {
			uri := &model.RedirectURI{ClientID: client.ID, Value: value, Enabled: true}
			if err := NewRedirectURIRepository(tx).Create(ctx, uri); err != nil {
				return err
			}
		}
		if client.ServiceAccountEnabled {
			return s.userRepo.WithTx(tx).Create(ctx, NewServiceAccount(client))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.ClientCreated, client.ID, client)
	return client, nil
}

func (s *ClientService) GetClient(ctx context.Context, identity policy.Identity, realmName, id string) (*model.Client, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewClients)
	if err != nil {
		return nil, err
	}
	return s.clientRepo.GetByID(ctx, realm.ID, id)
}

func (s *ClientService) ListClients(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Client, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewClients)
	if err != nil {
		return nil, err
	}
	return s.clientRepo.ListByRealm(ctx, realm.ID)
}

func (s *ClientService) UpdateClient(ctx context.Context, identity policy.Identity, p UpdateClientParams) (*model.Client, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageClients)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetByID(ctx, realm.ID, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		client.Name = *p.Name
	}
	if p.Enabled != nil {
		client.Enabled = *p.Enabled
	}
	if p.DirectAccessGrantsEnabled != nil {
		client.DirectAccessGrantsEnabled = *p.DirectAccessGrantsEnabled
	}
	if p.ServiceAccountEnabled != nil {
		if *p.ServiceAccountEnabled && client.PublicClient {
			return nil, ErrPublicServiceAccount
		}
		client.ServiceAccountEnabled = *p.ServiceAccountEnabled
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.clientRepo.WithTx(tx).Save(ctx, client); err != nil {
			return err
		}
		if !client.ServiceAccountEnabled {
			return nil
		}
		userRepo := s.userRepo.WithTx(tx)
		_, err := userRepo.GetServiceAccount(ctx, client.ID)
		if errors.Is(err, users.ErrUserNotFound) {
			return userRepo.Create(ctx, NewServiceAccount(client))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.ClientUpdated, client.ID, client)
	return client, nil
}

// DeleteClient removes the client, its service account, redirect URIs and client roles.
func (s *ClientService) DeleteClient(ctx context.Context, identity policy.Identity, realmName, id string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageClients)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		sa, err := userRepo.GetServiceAccount(ctx, id)
		if err != nil && !errors.Is(err, users.ErrUserNotFound) {
			return err
		}
		if err := s.clientRepo.WithTx(tx).Delete(ctx, realm.ID, id); err != nil {
			return err
		}
		if sa != nil {
			_, err = userRepo.Delete(ctx, realm.ID, sa.ID)
		}
		return err
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.ClientDeleted, id, nil)
	return nil
}

// RegenerateSecret replaces the secret of a confidential client and returns the updated client.
func (s *ClientService) RegenerateSecret(ctx context.Context, identity policy.Identity, realmName, id string) (*model.Client, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageClients)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetByID(ctx, realm.ID, id)
	if err != nil {
		return nil, err
	}
	if client.PublicClient {
		return nil, ErrPublicClientSecret
	}
	if client.Secret, err = generateClientSecret(); err != nil {
		return nil, err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.ClientUpdated, client.ID, nil)
	return client, nil
}

func (s *ClientService) clientFor(ctx context.Context, identity policy.Identity, realmName, clientID string, rule policy.Rule) (*model.Realm, *model.Client, error) {
	realm, err := s.authorize(ctx, identity, realmName, rule)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.clientRepo.GetByID(ctx, realm.ID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return realm, client, nil
}

func (s *ClientService) CreateRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, value string, enabled bool) (*model.RedirectURI, error) {
	realm, client, err := s.clientFor(ctx, identity, realmName, clientID, policy.ManageClients)
	if err != nil {
		return nil, err
	}
	value, err = validateRedirectURI(value)
	if err != nil {
		return nil, err
	}
	uri := &model.RedirectURI{ClientID: client.ID, Value: value, Enabled: enabled}
	if err := s.redirectRepo.Create(ctx, uri); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RedirectURICreated, uri.ID, uri)
	return uri, nil
}

func (s *ClientService) ListRedirectURIs(ctx context.Context, identity policy.Identity, realmName, clientID string) ([]*model.RedirectURI, error) {
	_, client, err := s.clientFor(ctx, identity, realmName, clientID, policy.ViewClients)
	if err != nil {
		return nil, err
	}
	return s.redirectRepo.ListByClient(ctx, client.ID)
}

func (s *ClientService) UpdateRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, uriID string, value *string, enabled *bool) (*model.RedirectURI, error) {
	realm, client, err := s.clientFor(ctx, identity, realmName, clientID, policy.ManageClients)
	if err != nil {
		return nil, err
	}
	uri, err := s.redirectRepo.GetByID(ctx, client.ID, uriID)
	if err != nil {
		return nil, err
	}
	if value != nil {
		if uri.Value, err = validateRedirectURI(*value); err != nil {
			return nil, err
		}
	}
	if enabled != nil {
		uri.Enabled = *enabled
	}
	if err := s.redirectRepo.Save(ctx, uri); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RedirectURIUpdated, uri.ID, uri)
	return uri, nil
}

func (s *ClientService) DeleteRedirectURI(ctx context.Context, identity policy.Identity, realmName, clientID, uriID string) error {
	realm, client, err := s.clientFor(ctx, identity, realmName, clientID, policy.ManageClients)
	if err != nil {
		return err
	}
	if err := s.redirectRepo.Delete(ctx, client.ID, uriID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, webhooks.RedirectURIDeleted, uriID, nil)
	return nil
}

func NewClientService(db *gorm.DB, realmRepo RealmRepository, clientRepo ClientRepository, redirectRepo RedirectURIRepository, userRepo users.UserRepository, authorizer Authorizer, notifier EventNotifier) *ClientService {
	return &ClientService{
		db:           db,
		realmRepo:    realmRepo,
		clientRepo:   clientRepo,
		redirectRepo: redirectRepo,
		userRepo:     userRepo,
		authorizer:   authorizer,
		notifier:     notifier,
	}
}
