package webhooks

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type WebhookRepository interface {
	Create(ctx context.Context, webhook *model.Webhook) error
	GetByID(ctx context.Context, realmID string, webhookID string) (*model.Webhook, error)
	ListByRealm(ctx context.Context, realmID string) ([]*model.Webhook, error)
	Save(ctx context.Context, webhook *model.Webhook) error
	Delete(ctx context.Context, realmID string, webhookID string) error
	DeleteByRealm(ctx context.Context, realmID string) error
}

type webhookRepository struct {
	db *gorm.DB
}

func (r *webhookRepository) Create(ctx context.Context, webhook *model.Webhook) error {
	return r.db.WithContext(ctx).Create(webhook).Error
}

func (r *webhookRepository) GetByID(ctx context.Context, realmID string, webhookID string) (*model.Webhook, error) {
	var webhook model.Webhook
	err := r.db.WithContext(ctx).Where("realm_id = ? AND id = ?", realmID, webhookID).First(&webhook).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWebhookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (r *webhookRepository) ListByRealm(ctx context.Context, realmID string) ([]*model.Webhook, error) {
	var webhooks []*model.Webhook
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).Order("subscribed_at").Find(&webhooks).Error
	return webhooks, err
}

func (r *webhookRepository) Save(ctx context.Context, webhook *model.Webhook) error {
	return r.db.WithContext(ctx).Save(webhook).Error
}

func (r *webhookRepository) Delete(ctx context.Context, realmID string, webhookID string) error {
	tx := r.db.WithContext(ctx).Where("realm_id = ? AND id = ?", realmID, webhookID).Delete(&model.Webhook{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

func (r *webhookRepository) DeleteByRealm(ctx context.Context, realmID string) error {
	return r.db.WithContext(ctx).Where("realm_id = ?", realmID).Delete(&model.Webhook{}).Error
}

func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}
