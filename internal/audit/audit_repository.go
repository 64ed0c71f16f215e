package audit

import (
	"context"
	"time"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type AuditEventRepository interface {
	RecordEvent(ctx context.Context, event *model.AuditEvent) error
	ListByRealm(ctx context.Context, realm string, limit int) ([]*model.AuditEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type auditEventRepository struct {
	db *gorm.DB
}

func (r *auditEventRepository) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByRealm returns the latest events of the realm, newest first.
func (r *auditEventRepository) ListByRealm(ctx context.Context, realm string, limit int) ([]*model.AuditEvent, error) {
	var events []*model.AuditEvent
	err := r.db.WithContext(ctx).Where("realm = ?", realm).Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *auditEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.AuditEvent{})
	return res.RowsAffected, res.Error
}

func NewAuditEventRepository(db *gorm.DB) AuditEventRepository {
	return &auditEventRepository{db: db}
}
