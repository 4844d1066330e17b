package user

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
)

type Service interface {
	List(ctx context.Context, actor permission.Subject) ([]User, error)
	Get(ctx context.Context, actor permission.Subject, id uuid.UUID) (User, error)
	Create(ctx context.Context, actor permission.Subject, in CreateInput) (User, error)
	Update(ctx context.Context, actor permission.Subject, id uuid.UUID, in UpdateInput) (User, error)
	Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error
	UpdateRole(ctx context.Context, actor permission.Subject, id uuid.UUID, role string) (User, error)
	Roles(ctx context.Context, actor permission.Subject) ([]RoleInfo, error)
	CreateSuperAdmin(ctx context.Context, in CreateInput) (User, error)
}

type userService struct {
	repo     Repository
	mail     mailer.Sender
	loginURL string
	logger   *log.Logger
}

func NewService(repo Repository, mail mailer.Sender, loginURL string, logger *log.Logger) Service {
	if logger == nil {
		logger = log.Default()
	}
	return &userService{
		repo:     repo,
		mail:     mail,
		loginURL: loginURL,
		logger:   logger,
	}
}

func (s *userService) List(ctx context.Context, actor permission.Subject) ([]User, error) {
	return s.repo.List(ctx, actor)
}

func (s *userService) Get(ctx context.Context, actor permission.Subject, id uuid.UUID) (User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.ID == actor.UserID {
		return u, nil
	}
	if err := permission.Authorize(actor, permission.ActionView, u.Target()); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *userService) Create(ctx context.Context, actor permission.Subject, in CreateInput) (User, error) {
	if err := permission.Require(actor, permission.PermCreate); err != nil {
		return User{}, err
	}
	role, err := permission.ParseRole(in.Role)
	if err != nil {
		return User{}, apperr.Invalid(err.Error())
	}
	if !permission.CanCreate(actor.Role, role) {
		return User{}, apperr.Forbidden()
	}

	creator := actor.UserID
	u, err := s.insert(ctx, in, role, &creator)
	if err != nil {
		return User{}, err
	}
	s.sendWelcome(ctx, u)
	return u, nil
}

// CreateSuperAdmin создаёт первого администратора, без проверки прав.
func (s *userService) CreateSuperAdmin(ctx context.Context, in CreateInput) (User, error) {
	return s.insert(ctx, in, permission.RoleSuperAdmin, nil)
}

func (s *userService) insert(ctx context.Context, in CreateInput, role permission.Role, createdBy *uuid.UUID) (User, error) {
	if err := ValidateEmail(in.Email); err != nil {
		return User{}, apperr.Invalid(err.Error())
	}
	if err := ValidatePassword(in.Password); err != nil {
		return User{}, apperr.Invalid(err.Error())
	}
	if err := ValidateName(in.Name); err != nil {
		return User{}, apperr.Invalid(err.Error())
	}

	email := NormalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return User{}, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	u := User{
		ID:           uuid.New(),
		Name:         SanitizeString(in.Name),
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		CreatedByID:  createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, s.mapErr(err)
	}
	return u, nil
}

func (s *userService) Update(ctx context.Context, actor permission.Subject, id uuid.UUID, in UpdateInput) (User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := permission.Authorize(actor, permission.ActionEdit, u.Target()); err != nil {
		return User{}, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		if err := ValidateName(*in.Name); err != nil {
			return User{}, apperr.Invalid(err.Error())
		}
		updates["name"] = SanitizeString(*in.Name)
	}
	if in.Email != nil {
		if err := ValidateEmail(*in.Email); err != nil {
			return User{}, apperr.Invalid(err.Error())
		}
		email := NormalizeEmail(*in.Email)
		if email != u.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return User{}, err
			}
			updates["email"] = email
		}
	}
	if in.NewPassword != nil {
		// смена пароля только с подтверждением старого
		if in.OldPassword == nil || CheckPassword(u.PasswordHash, *in.OldPassword) != nil {
			return User{}, apperr.Invalid("old password is incorrect")
		}
		if err := ValidatePassword(*in.NewPassword); err != nil {
			return User{}, apperr.Invalid(err.Error())
		}
		hashed, err := HashPassword(*in.NewPassword)
		if err != nil {
			return User{}, err
		}
		updates["password_hash"] = hashed
	}
	if len(updates) == 0 {
		return User{}, apperr.Invalid("nothing to update")
	}

	updates["updated_by_id"] = actor.UserID
	updates["updated_at"] = time.Now().UTC()
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return User{}, s.mapErr(err)
	}
	return s.load(ctx, id)
}

func (s *userService) Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error {
	if id == actor.UserID {
		return apperr.Invalid("cannot delete yourself")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := permission.Authorize(actor, permission.ActionDelete, u.Target()); err != nil {
		return err
	}
	return s.mapErr(s.repo.Delete(ctx, id))
}

func (s *userService) UpdateRole(ctx context.Context, actor permission.Subject, id uuid.UUID, role string) (User, error) {
	if err := permission.Require(actor, permission.PermEdit); err != nil {
		return User{}, err
	}
	newRole, err := permission.ParseRole(role)
	if err != nil {
		return User{}, apperr.Invalid(err.Error())
	}
	if id == actor.UserID {
		return User{}, apperr.Invalid("cannot change your own role")
	}
	if _, err := s.load(ctx, id); err != nil {
		return User{}, err
	}

	updates := map[string]interface{}{
		"role":          newRole,
		"updated_by_id": actor.UserID,
		"updated_at":    time.Now().UTC(),
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return User{}, s.mapErr(err)
	}
	return s.load(ctx, id)
}

func (s *userService) Roles(ctx context.Context, actor permission.Subject) ([]RoleInfo, error) {
	if err := permission.Require(actor, permission.PermViewRoles); err != nil {
		return nil, err
	}
	roles := permission.Roles()
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{Role: r, Permissions: permission.PermissionsOf(r)})
	}
	return out, nil
}

func (s *userService) load(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, s.mapErr(err)
	}
	return u, nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict("email already registered")
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func (s *userService) mapErr(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return apperr.NotFound(ErrUserNotFound.Error())
	case errors.Is(err, ErrEmailTaken):
		return apperr.Conflict(ErrEmailTaken.Error())
	}
	return err
}

func (s *userService) sendWelcome(ctx context.Context, u User) {
	if s.mail == nil {
		return
	}
	msg, err := mailer.Registration(u.Email, mailer.RegistrationData{
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
		Link:  s.loginURL,
	})
	if err == nil {
		err = s.mail.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Printf("registration mail to %s failed: %v", u.Email, err)
	}
}
