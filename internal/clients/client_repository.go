package clients

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClientRepository interface {
	WithTx(tx *gorm.DB) ClientRepository
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, realmID string, id string) (*model.Client, error)
	GetByClientID(ctx context.Context, realmID string, clientID string) (*model.Client, error)
	ListByRealm(ctx context.Context, realmID string) ([]*model.Client, error)
	Save(ctx context.Context, client *model.Client) error
	Delete(ctx context.Context, realmID string, id string) error
}

type clientRepository struct {
	db *gorm.DB
}

func (r *clientRepository) WithTx(tx *gorm.DB) ClientRepository {
	return NewClientRepository(tx)
}

func (r *clientRepository) first(ctx context.Context, query string, args ...any) (*model.Client, error) {
	var client model.Client
	err := r.db.WithContext(ctx).Where(query, args...).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(client).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrClientAlreadyExists
	}
	return err
}

func (r *clientRepository) GetByID(ctx context.Context, realmID string, id string) (*model.Client, error) {
	return r.first(ctx, "realm_id = ? AND id = ?", realmID, id)
}

func (r *clientRepository) GetByClientID(ctx context.Context, realmID string, clientID string) (*model.Client, error) {
	return r.first(ctx, "realm_id = ? AND client_id = ?", realmID, clientID)
}

func (r *clientRepository) ListByRealm(ctx context.Context, realmID string) ([]*model.Client, error) {
	var clients []*model.Client
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).Order("client_id").Find(&clients).Error
	return clients, err
}

func (r *clientRepository) Save(ctx context.Context, client *model.Client) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(client).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrClientAlreadyExists
	}
	return err
}

// Delete removes the client with its redirect URIs and client scoped roles.
func (r *clientRepository) Delete(ctx context.Context, realmID string, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("realm_id = ? AND id = ?", realmID, id).Delete(&model.Client{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrClientNotFound
		}
		if err := tx.Where("client_id = ?", id).Delete(&model.RedirectURI{}).Error; err != nil {
			return err
		}
		roleIDs := tx.Model(&model.Role{}).Select("id").Where("client_id = ?", id)
		if err := tx.Where("role_id IN (?)", roleIDs).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("client_id = ?", id).Delete(&model.Role{}).Error
	})
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

type RedirectURIRepository interface {
	Create(ctx context.Context, uri *model.RedirectURI) error
	GetByID(ctx context.Context, clientID string, id string) (*model.RedirectURI, error)
	ListByClient(ctx context.Context, clientID string) ([]*model.RedirectURI, error)
	ListEnabled(ctx context.Context, clientID string) ([]*model.RedirectURI, error)
	Save(ctx context.Context, uri *model.RedirectURI) error
	Delete(ctx context.Context, clientID string, id string) error
}

type redirectURIRepository struct {
	db *gorm.DB
}

func (r *redirectURIRepository) Create(ctx context.Context, uri *model.RedirectURI) error {
	return r.db.WithContext(ctx).Create(uri).Error
}

func (r *redirectURIRepository) GetByID(ctx context.Context, clientID string, id string) (*model.RedirectURI, error) {
	var uri model.RedirectURI
	err := r.db.WithContext(ctx).Where("client_id = ? AND id = ?", clientID, id).First(&uri).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRedirectURINotFound
	}
	if err != nil {
		return nil, err
	}
	return &uri, nil
}

func (r *redirectURIRepository) ListByClient(ctx context.Context, clientID string) ([]*model.RedirectURI, error) {
	var uris []*model.RedirectURI
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at").Find(&uris).Error
	return uris, err
}

func (r *redirectURIRepository) ListEnabled(ctx context.Context, clientID string) ([]*model.RedirectURI, error) {
	var uris []*model.RedirectURI
	err := r.db.WithContext(ctx).Where("client_id = ? AND enabled = ?", clientID, true).Order("created_at").Find(&uris).Error
	return uris, err
}

func (r *redirectURIRepository) Save(ctx context.Context, uri *model.RedirectURI) error {
	return r.db.WithContext(ctx).Save(uri).Error
}

func (r *redirectURIRepository) Delete(ctx context.Context, clientID string, id string) error {
	res := r.db.WithContext(ctx).Where("client_id = ? AND id = ?", clientID, id).Delete(&model.RedirectURI{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRedirectURINotFound
	}
	return nil
}

func NewRedirectURIRepository(db *gorm.DB) RedirectURIRepository {
	return &redirectURIRepository{db: db}
}
