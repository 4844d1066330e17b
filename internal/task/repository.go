package task

import (
	"context"
	"errors"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrTaskNotFound = errors.New("task not found")

type Repository interface {
	Create(ctx context.Context, t Task, h History) error
	Get(ctx context.Context, id uuid.UUID) (Task, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}, h *History) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, viewer permission.Subject, filter ListFilter) ([]Task, error)
	History(ctx context.Context, viewer permission.Subject, taskIDs []uuid.UUID) ([]History, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, t Task, h History) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		return tx.Create(&h).Error
	})
}

func (r *taskRepository) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	var t Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Task{}, ErrTaskNotFound
	}
	return t, err
}

// Update меняет задачу и, если передана запись истории, добавляет её в той же транзакции.
func (r *taskRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}, h *History) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Task{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		if h != nil {
			return tx.Create(h).Error
		}
		return nil
	})
}

// Delete removes the task row only; its history stays as the audit trail.
func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Task{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) List(ctx context.Context, viewer permission.Subject, filter ListFilter) ([]Task, error) {
	tx := r.visible(ctx, r.db.WithContext(ctx).Model(&Task{}), viewer)
	if filter.Status != nil {
		tx = tx.Where("status = ?", *filter.Status)
	}
	if filter.DueDate != "" {
		tx = tx.Where("due_date = ?", filter.DueDate)
	}

	var tasks []Task
	if err := tx.Order("created_at").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) History(ctx context.Context, viewer permission.Subject, taskIDs []uuid.UUID) ([]History, error) {
	tx := r.db.WithContext(ctx).Model(&History{})
	if viewer.Role != permission.RoleSuperAdmin {
		visibleIDs := r.visible(ctx, r.db.WithContext(ctx).Model(&Task{}).Select("id"), viewer)
		tx = tx.Where("task_id IN (?)", visibleIDs)
	}
	if len(taskIDs) > 0 {
		tx = tx.Where("task_id IN ?", taskIDs)
	}

	var rows []History
	if err := tx.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// visible ограничивает выборку задач по роли: суперадмин видит всё,
// менеджер свои и назначенные агентам, агент только назначенные ему.
func (r *taskRepository) visible(ctx context.Context, tx *gorm.DB, viewer permission.Subject) *gorm.DB {
	switch viewer.Role {
	case permission.RoleSuperAdmin:
		return tx
	case permission.RoleManager:
		agents := r.db.WithContext(ctx).Model(&user.User{}).Select("id").Where("role = ?", permission.RoleAgent)
		return tx.Where("created_by_id = ? OR assignee_id = ? OR assignee_id IN (?)", viewer.UserID, viewer.UserID, agents)
	case permission.RoleAgent:
		return tx.Where("assignee_id = ?", viewer.UserID)
	default:
		return tx.Where("1 = 0")
	}
}
