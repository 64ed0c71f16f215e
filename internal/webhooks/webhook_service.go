package webhooks

import (
	"context"
	"net/url"

	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/model"
)

type RealmRepository interface {
	GetByName(ctx context.Context, name string) (*model.Realm, error)
}

type Authorizer interface {
	Ensure(ctx context.Context, identity policy.Identity, target *model.Realm, rule policy.Rule) error
}

type EventNotifier interface {
	Notify(ctx context.Context, realmID string, trigger Trigger, resourceID string, data any)
}

type CreateWebhookParams struct {
	RealmName   string
	Name        string
	Description string
	Endpoint    string
	Triggers    []string
}

type UpdateWebhookParams struct {
	RealmName   string
	WebhookID   string
	Name        *string
	Description *string
	Endpoint    *string
	Triggers    []string
}

type WebhookService struct {
	realmRepo   RealmRepository
	webhookRepo WebhookRepository
	authorizer  Authorizer
	notifier    EventNotifier
}

func (s *WebhookService) authorize(ctx context.Context, identity policy.Identity, realmName string, rule policy.Rule) (*model.Realm, error) {
	realm, err := s.realmRepo.GetByName(ctx, realmName)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Ensure(ctx, identity, realm, rule); err != nil {
		return nil, err
	}
	return realm, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidEndpoint
	}
	return nil
}

func (s *WebhookService) CreateWebhook(ctx context.Context, identity policy.Identity, p CreateWebhookParams) (*model.Webhook, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageWebhooks)
	if err != nil {
		return nil, err
	}
	if err := validateEndpoint(p.Endpoint); err != nil {
		return nil, err
	}
	triggers, err := ParseTriggers(p.Triggers)
	if err != nil {
		return nil, err
	}
	webhook := &model.Webhook{
		RealmID:     realm.ID,
		Name:        p.Name,
		Description: p.Description,
		Endpoint:    p.Endpoint,
		Triggers:    triggers,
	}
	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, WebhookCreated, webhook.ID, webhook)
	return webhook, nil
}

func (s *WebhookService) GetWebhook(ctx context.Context, identity policy.Identity, realmName, webhookID string) (*model.Webhook, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewWebhooks)
	if err != nil {
		return nil, err
	}
	return s.webhookRepo.GetByID(ctx, realm.ID, webhookID)
}

func (s *WebhookService) ListWebhooks(ctx context.Context, identity policy.Identity, realmName string) ([]*model.Webhook, error) {
	realm, err := s.authorize(ctx, identity, realmName, policy.ViewWebhooks)
	if err != nil {
		return nil, err
	}
	return s.webhookRepo.ListByRealm(ctx, realm.ID)
}

func (s *WebhookService) UpdateWebhook(ctx context.Context, identity policy.Identity, p UpdateWebhookParams) (*model.Webhook, error) {
	realm, err := s.authorize(ctx, identity, p.RealmName, policy.ManageWebhooks)
	if err != nil {
		return nil, err
	}
	webhook, err := s.webhookRepo.GetByID(ctx, realm.ID, p.WebhookID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		webhook.Name = *p.Name
	}
	if p.Description != nil {
		webhook.Description = *p.Description
	}
	if p.Endpoint != nil {
		if err := validateEndpoint(*p.Endpoint); err != nil {
			return nil, err
		}
		webhook.Endpoint = *p.Endpoint
	}
	if p.Triggers != nil {
		triggers, err := ParseTriggers(p.Triggers)
		if err != nil {
			return nil, err
		}
		webhook.Triggers = triggers
	}
	if err := s.webhookRepo.Save(ctx, webhook); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realm.ID, WebhookUpdated, webhook.ID, webhook)
	return webhook, nil
}

func (s *WebhookService) DeleteWebhook(ctx context.Context, identity policy.Identity, realmName, webhookID string) error {
	realm, err := s.authorize(ctx, identity, realmName, policy.ManageWebhooks)
	if err != nil {
		return err
	}
	if err := s.webhookRepo.Delete(ctx, realm.ID, webhookID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realm.ID, WebhookDeleted, webhookID, nil)
	return nil
}

func NewWebhookService(realmRepo RealmRepository, webhookRepo WebhookRepository, authorizer Authorizer, notifier EventNotifier) *WebhookService {
	return &WebhookService{
		realmRepo:   realmRepo,
		webhookRepo: webhookRepo,
		authorizer:  authorizer,
		notifier:    notifier,
	}
}
