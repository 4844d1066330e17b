package user

import (
	"context"
	"errors"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, viewer permission.Subject) ([]User, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	RolesOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]permission.Role, error)
	EmailsOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u User) error {
	return translate(r.db.WithContext(ctx).Create(&u).Error)
}

// translate отдаёт ErrEmailTaken при нарушении уникального индекса email.
// Требует gorm.Config{TranslateError: true}.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// List применяет область видимости: менеджер видит себя и агентов, агент только себя.
func (r *userRepository) List(ctx context.Context, viewer permission.Subject) ([]User, error) {
	tx := r.db.WithContext(ctx).Order("created_at")
	switch viewer.Role {
	case permission.RoleSuperAdmin:
	case permission.RoleManager:
		tx = tx.Where("id = ? OR role = ?", viewer.UserID, permission.RoleAgent)
	default:
		tx = tx.Where("id = ?", viewer.UserID)
	}

	var users []User
	if err := tx.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RolesOf returns the current role of each existing user in ids.
func (r *userRepository) RolesOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]permission.Role, error) {
	out := make(map[uuid.UUID]permission.Role, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []User
	if err := r.db.WithContext(ctx).Select("id", "role").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Role
	}
	return out, nil
}

func (r *userRepository) EmailsOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []User
	if err := r.db.WithContext(ctx).Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Email
	}
	return out, nil
}
