package realms

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type RealmRepository interface {
	WithTx(tx *gorm.DB) RealmRepository
	Create(ctx context.Context, realm *model.Realm) error
	GetByID(ctx context.Context, realmID string) (*model.Realm, error)
	GetByName(ctx context.Context, name string) (*model.Realm, error)
	List(ctx context.Context) ([]*model.Realm, error)
	Save(ctx context.Context, realm *model.Realm) error
	Delete(ctx context.Context, realmID string) error
	CreateSettings(ctx context.Context, settings *model.RealmSetting) error
	GetSettings(ctx context.Context, realmID string) (*model.RealmSetting, error)
	SaveSettings(ctx context.Context, settings *model.RealmSetting) error
}

type realmRepository struct {
	db *gorm.DB
}

func (r *realmRepository) WithTx(tx *gorm.DB) RealmRepository {
	return NewRealmRepository(tx)
}

func (r *realmRepository) Create(ctx context.Context, realm *model.Realm) error {
	err := r.db.WithContext(ctx).Create(realm).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRealmAlreadyExists
	}
	return err
}

func (r *realmRepository) first(ctx context.Context, query string, args ...any) (*model.Realm, error) {
	var realm model.Realm
	err := r.db.WithContext(ctx).Where(query, args...).First(&realm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRealmNotFound
	}
	if err != nil {
		return nil, err
	}
	return &realm, nil
}

func (r *realmRepository) GetByID(ctx context.Context, realmID string) (*model.Realm, error) {
	return r.first(ctx, "id = ?", realmID)
}

func (r *realmRepository) GetByName(ctx context.Context, name string) (*model.Realm, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *realmRepository) List(ctx context.Context) ([]*model.Realm, error) {
	var realms []*model.Realm
	err := r.db.WithContext(ctx).Order("name").Find(&realms).Error
	return realms, err
}

func (r *realmRepository) Save(ctx context.Context, realm *model.Realm) error {
	err := r.db.WithContext(ctx).Save(realm).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRealmAlreadyExists
	}
	return err
}

// Delete removes the realm and every user, role, client and setting it owns.
func (r *realmRepository) Delete(ctx context.Context, realmID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userIDs := tx.Model(&model.User{}).Select("id").Where("realm_id = ?", realmID)
		roleIDs := tx.Model(&model.Role{}).Select("id").Where("realm_id = ?", realmID)
		clientIDs := tx.Model(&model.Client{}).Select("id").Where("realm_id = ?", realmID)

		deletes := []struct {
			table any
			query string
			args  []any
		}{
			{&model.UserRole{}, "user_id IN (?) OR role_id IN (?)", []any{userIDs, roleIDs}},
			{&model.Credential{}, "user_id IN (?)", []any{userIDs}},
			{&model.RefreshToken{}, "user_id IN (?)", []any{userIDs}},
			{&model.RedirectURI{}, "client_id IN (?)", []any{clientIDs}},
			{&model.User{}, "realm_id = ?", []any{realmID}},
			{&model.Role{}, "realm_id = ?", []any{realmID}},
			{&model.Client{}, "realm_id = ?", []any{realmID}},
			{&model.RealmSetting{}, "realm_id = ?", []any{realmID}},
		}
		for _, d := range deletes {
			if err := tx.Where(d.query, d.args...).Delete(d.table).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", realmID).Delete(&model.Realm{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRealmNotFound
		}
		return nil
	})
}

func (r *realmRepository) CreateSettings(ctx context.Context, settings *model.RealmSetting) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *realmRepository) GetSettings(ctx context.Context, realmID string) (*model.RealmSetting, error) {
	var settings model.RealmSetting
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRealmSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *realmRepository) SaveSettings(ctx context.Context, settings *model.RealmSetting) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

func NewRealmRepository(db *gorm.DB) RealmRepository {
	return &realmRepository{db: db}
}
