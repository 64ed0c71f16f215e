package users

import (
	"context"
	"errors"

	"github.com/khanghh/krealm/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByRealmAndID(ctx context.Context, realmID string, userID string) (*model.User, error)
	GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error)
	GetServiceAccount(ctx context.Context, clientID string) (*model.User, error)
	ListByRealm(ctx context.Context, realmID string) ([]*model.User, error)
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, realmID string, userIDs ...string) (int64, error)
	GetRoles(ctx context.Context, userID string) ([]*model.Role, error)
	AssignRole(ctx context.Context, userID string, roleID string) error
	UnassignRole(ctx context.Context, userID string, roleID string) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserAlreadyExists
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.first(ctx, "id = ?", userID)
}

func (r *userRepository) GetByRealmAndID(ctx context.Context, realmID string, userID string) (*model.User, error) {
	return r.first(ctx, "realm_id = ? AND id = ?", realmID, userID)
}

func (r *userRepository) GetByUsername(ctx context.Context, realmID string, username string) (*model.User, error) {
	return r.first(ctx, "realm_id = ? AND username = ?", realmID, username)
}

// GetServiceAccount returns the service account user of the client with the given internal id.
func (r *userRepository) GetServiceAccount(ctx context.Context, clientID string) (*model.User, error) {
	return r.first(ctx, "client_id = ?", clientID)
}

func (r *userRepository) ListByRealm(ctx context.Context, realmID string) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Where("realm_id = ?", realmID).Order("username").Find(&users).Error
	return users, err
}

func (r *userRepository) Save(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserAlreadyExists
	}
	return err
}

// Delete removes the users of the realm with their role assignments and credentials.
func (r *userRepository) Delete(ctx context.Context, realmID string, userIDs ...string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&model.User{}).Where("realm_id = ? AND id IN ?", realmID, userIDs).Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.Credential{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&model.User{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (r *userRepository) GetRoles(ctx context.Context, userID string) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_role ON user_role.role_id = role.id").
		Where("user_role.user_id = ?", userID).
		Order("role.name").
		Find(&roles).Error
	return roles, err
}

// AssignRole is idempotent, assigning an already held role is a no-op.
func (r *userRepository) AssignRole(ctx context.Context, userID string, roleID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, RoleID: roleID}).Error
}

func (r *userRepository) UnassignRole(ctx context.Context, userID string, roleID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&model.UserRole{})
	return res.RowsAffected, res.Error
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}
