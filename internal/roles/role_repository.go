package roles

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
)

type RoleRepository interface {
	WithTx(tx *gorm.DB) RoleRepository
	Create(ctx context.Context, role *model.Role) error
	GetByID(ctx context.Context, realmID string, roleID string) (*model.Role, error)
	FindByID(ctx context.Context, roleID string) (*model.Role, error)
	GetByName(ctx context.Context, realmID string, clientID *string, name string) (*model.Role, error)
	ListByRealm(ctx context.Context, realmID string) ([]*model.Role, error)
	ListByClient(ctx context.Context, realmID string, clientID string) ([]*model.Role, error)
	Save(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, realmID string, roleID string) error
}

type roleRepository struct {
	db *gorm.DB
}

func (r *roleRepository) WithTx(tx *gorm.DB) RoleRepository {
	return NewRoleRepository(tx)
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *roleRepository) GetByID(ctx context.Context, realmID string, roleID string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("realm_id = ? AND id = ?", realmID, roleID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByID looks the role up in any realm.
func (r *roleRepository) FindByID(ctx context.Context, roleID string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("id = ?", roleID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, realmID string, clientID *string, name string) (*model.Role, error) {
	var role model.Role
	q := r.db.WithContext(ctx).Where("realm_id = ? AND name = ?", realmID, name)
	if clientID == nil {
		q = q.Where("client_id IS NULL")
	} else {
		q = q.Where("client_id = ?", *clientID)
	}
	err := q.First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListByRealm(ctx context.Context, realmID string) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).Order("name").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) ListByClient(ctx context.Context, realmID string, clientID string) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).Where("realm_id = ? AND client_id = ?", realmID, clientID).Order("name").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) Save(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

// Delete removes the role together with its user assignments.
func (r *roleRepository) Delete(ctx context.Context, realmID string, roleID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("realm_id = ? AND id = ?", realmID, roleID).Delete(&model.Role{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoleNotFound
		}
		return tx.Where("role_id = ?", roleID).Delete(&model.UserRole{}).Error
	})
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}
