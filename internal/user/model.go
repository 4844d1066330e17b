package user

import (
	"time"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string          `json:"name" gorm:"not null"`
	Email        string          `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string          `json:"-" gorm:"not null"`
	Role         permission.Role `json:"role" gorm:"type:varchar(20);not null;index"`
	CreatedByID  *uuid.UUID      `json:"created_by,omitempty" gorm:"type:uuid"`
	UpdatedByID  *uuid.UUID      `json:"updated_by,omitempty" gorm:"type:uuid"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (u User) Subject() permission.Subject {
	return permission.Subject{UserID: u.ID, Role: u.Role}
}

// Target описывает пользователя как объект проверки прав.
func (u User) Target() permission.Target {
	id := u.ID
	return permission.Target{OwnerID: &id, Role: u.Role}
}

type RoleInfo struct {
	Role        permission.Role         `json:"role"`
	Permissions []permission.Permission `json:"permissions"`
}

type CreateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	OldPassword *string `json:"old_password,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}
