package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByJTI(ctx context.Context, jti string) (*model.RefreshToken, error)
	RevokeByJTI(ctx context.Context, jti string) (int64, error)
	RevokeByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *refreshTokenRepository) GetByJTI(ctx context.Context, jti string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeByJTI marks the token revoked and reports how many rows changed state.
func (r *refreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)
	return tx.RowsAffected, tx.Error
}

func (r *refreshTokenRepository) RevokeByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.RefreshToken{})
	return tx.RowsAffected, tx.Error
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}
