package task

import (
	"time"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/google/uuid"
)

type Status string

const (
	StatusNotAssigned Status = "NOT_ASSIGNED"
	StatusAssigned    Status = "ASSIGNED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusOnHold      Status = "ON_HOLD"
	StatusCompleted   Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotAssigned, StatusAssigned, StatusInProgress, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

const dueDateLayout = "2006-01-02"

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	DueDate     string     `json:"due_date,omitempty" gorm:"type:varchar(10);index"`
	Status      Status     `json:"status" gorm:"type:varchar(20);not null;index"`
	CreatedByID uuid.UUID  `json:"created_by" gorm:"type:uuid;not null;index"`
	UpdatedByID *uuid.UUID `json:"updated_by,omitempty" gorm:"type:uuid"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// History: неизменяемая запись о смене статуса. Строки только добавляются.
type History struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	Status    Status    `json:"status" gorm:"type:varchar(20);not null"`
	Comment   *string   `json:"comment,omitempty"`
	ActorID   uuid.UUID `json:"actor_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

func (History) TableName() string {
	return "task_histories"
}

// View is a task with its assignee's current role resolved at read time.
type View struct {
	Task
	AssigneeRole permission.Role `json:"assignee_role,omitempty"`
}

func (t Task) target(assigneeRole permission.Role) permission.Target {
	creator := t.CreatedByID
	return permission.Target{OwnerID: t.AssigneeID, CreatorID: &creator, Role: assigneeRole}
}

type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     string     `json:"due_date,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Comment     *string    `json:"comment,omitempty"`
}

type UpdateInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *string    `json:"due_date,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	Unassign    bool       `json:"unassign,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Comment     *string    `json:"comment,omitempty"`
}

func (in UpdateInput) touchesDetails() bool {
	return in.Title != nil || in.Description != nil || in.DueDate != nil || in.AssigneeID != nil || in.Unassign
}

type ListFilter struct {
	Status  *Status
	DueDate string
}
