package task

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/Oniqq60/task_system_control/internal/notification"
	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/google/uuid"
)

type Service interface {
	Create(ctx context.Context, actor permission.Subject, in CreateInput) (View, error)
	Get(ctx context.Context, actor permission.Subject, id uuid.UUID) (View, error)
	List(ctx context.Context, actor permission.Subject, filter ListFilter) ([]View, error)
	Update(ctx context.Context, actor permission.Subject, id uuid.UUID, in UpdateInput) (View, error)
	Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error
	History(ctx context.Context, actor permission.Subject, taskIDs []uuid.UUID) ([]History, error)
	Authorize(ctx context.Context, actor permission.Subject, taskID uuid.UUID, action permission.Action) error
	// Wait blocks until in-flight event publishes finish.
	Wait()
}

// Users is the part of the user store the task service reads.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	RolesOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]permission.Role, error)
}

// AttachmentRemover удаляет документы задачи вместе с файлами.
type AttachmentRemover interface {
	RemoveTaskDocuments(ctx context.Context, taskID uuid.UUID) error
}

type taskService struct {
	repo        Repository
	users       Users
	publisher   notification.Publisher
	attachments AttachmentRemover
	logger      *log.Logger
	wg          sync.WaitGroup
}

func NewService(repo Repository, users Users, publisher notification.Publisher, attachments AttachmentRemover, logger *log.Logger) Service {
	if logger == nil {
		logger = log.Default()
	}
	return &taskService{
		repo:        repo,
		users:       users,
		publisher:   publisher,
		attachments: attachments,
		logger:      logger,
	}
}

func (s *taskService) Create(ctx context.Context, actor permission.Subject, in CreateInput) (View, error) {
	if err := permission.Require(actor, permission.PermCreate); err != nil {
		return View{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return View{}, apperr.Invalid("title must be between 1 and 200 characters")
	}
	if err := validateDueDate(in.DueDate); err != nil {
		return View{}, err
	}

	role := permission.RoleNone
	if in.AssigneeID != nil {
		var err error
		if role, err = s.assigneeRole(ctx, *in.AssigneeID); err != nil {
			return View{}, err
		}
	}

	status := StatusNotAssigned
	if in.AssigneeID != nil {
		status = StatusAssigned
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return View{}, apperr.Invalidf("invalid status %q", *in.Status)
		}
		status = *in.Status
	}

	now := time.Now().UTC()
	t := Task{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Status:      status,
		CreatedByID: actor.UserID,
		AssigneeID:  in.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// проверка прав до любой записи в базу
	if err := permission.Authorize(actor, permission.ActionCreate, t.target(role)); err != nil {
		return View{}, err
	}

	h := newHistory(t.ID, status, in.Comment, actor.UserID, now)
	if err := s.repo.Create(ctx, t, h); err != nil {
		return View{}, err
	}

	s.publish(notification.EventTaskCreated, t, actor, in.Comment)
	return View{Task: t, AssigneeRole: role}, nil
}

func (s *taskService) Get(ctx context.Context, actor permission.Subject, id uuid.UUID) (View, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := permission.Authorize(actor, permission.ActionView, v.target(v.AssigneeRole)); err != nil {
		return View{}, err
	}
	return v, nil
}

func (s *taskService) List(ctx context.Context, actor permission.Subject, filter ListFilter) ([]View, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Invalidf("invalid status %q", *filter.Status)
	}
	if err := validateDueDate(filter.DueDate); err != nil {
		return nil, err
	}

	tasks, err := s.repo.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return s.withRoles(ctx, tasks)
}

func (s *taskService) Update(ctx context.Context, actor permission.Subject, id uuid.UUID, in UpdateInput) (View, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := permission.Authorize(actor, permission.ActionEdit, current.target(current.AssigneeRole)); err != nil {
		return View{}, err
	}
	// агент может менять только статус и комментарий
	if actor.Role == permission.RoleAgent && in.touchesDetails() {
		return View{}, apperr.Forbidden()
	}
	if in.AssigneeID != nil && in.Unassign {
		return View{}, apperr.Invalid("assignee_id and unassign are mutually exclusive")
	}
	if in.Comment != nil && in.Status == nil {
		return View{}, apperr.Invalid("comment requires status")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > 200 {
			return View{}, apperr.Invalid("title must be between 1 and 200 characters")
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.DueDate != nil {
		if err := validateDueDate(*in.DueDate); err != nil {
			return View{}, err
		}
		updates["due_date"] = *in.DueDate
	}

	newStatus := current.Status
	statusTouched := false
	newRole := current.AssigneeRole
	reassigned := false

	switch {
	case in.Unassign && current.AssigneeID != nil:
		if err := permission.Authorize(actor, permission.ActionCreate, current.target(permission.RoleNone)); err != nil {
			return View{}, err
		}
		updates["assignee_id"] = nil
		newRole = permission.RoleNone
		newStatus, statusTouched = StatusNotAssigned, true
	case in.AssigneeID != nil && (current.AssigneeID == nil || *current.AssigneeID != *in.AssigneeID):
		role, err := s.assigneeRole(ctx, *in.AssigneeID)
		if err != nil {
			return View{}, err
		}
		next := current.Task
		next.AssigneeID = in.AssigneeID
		// переназначение проверяется как создание для нового исполнителя
		if err := permission.Authorize(actor, permission.ActionCreate, next.target(role)); err != nil {
			return View{}, err
		}
		updates["assignee_id"] = *in.AssigneeID
		newRole, reassigned = role, true
		if current.Status == StatusNotAssigned {
			newStatus, statusTouched = StatusAssigned, true
		}
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return View{}, apperr.Invalidf("invalid status %q", *in.Status)
		}
		newStatus, statusTouched = *in.Status, true
	}
	if len(updates) == 0 && !statusTouched {
		return View{}, apperr.Invalid("nothing to update")
	}

	now := time.Now().UTC()
	var h *History
	if statusTouched {
		updates["status"] = newStatus
		row := newHistory(id, newStatus, in.Comment, actor.UserID, now)
		h = &row
	}
	updates["updated_by_id"] = actor.UserID
	updates["updated_at"] = now

	if err := s.repo.Update(ctx, id, updates, h); err != nil {
		return View{}, s.mapErr(err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, s.mapErr(err)
	}
	if statusTouched {
		s.publish(notification.EventStatusChanged, updated, actor, in.Comment)
	}
	if reassigned {
		s.publish(notification.EventTaskAssigned, updated, actor, nil)
	}
	return View{Task: updated, AssigneeRole: newRole}, nil
}

func (s *taskService) Delete(ctx context.Context, actor permission.Subject, id uuid.UUID) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := permission.Authorize(actor, permission.ActionDelete, current.target(current.AssigneeRole)); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapErr(err)
	}
	if s.attachments != nil {
		if err := s.attachments.RemoveTaskDocuments(ctx, id); err != nil {
			s.logger.Printf("remove documents of task %s: %v", id, err)
		}
	}
	s.publish(notification.EventTaskDeleted, current.Task, actor, nil)
	return nil
}

func (s *taskService) History(ctx context.Context, actor permission.Subject, taskIDs []uuid.UUID) ([]History, error) {
	return s.repo.History(ctx, actor, taskIDs)
}

// Authorize проверяет действие над задачей; используется сервисом документов.
func (s *taskService) Authorize(ctx context.Context, actor permission.Subject, taskID uuid.UUID, action permission.Action) error {
	v, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	return permission.Authorize(actor, action, v.target(v.AssigneeRole))
}

func (s *taskService) load(ctx context.Context, id uuid.UUID) (View, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, s.mapErr(err)
	}
	views, err := s.withRoles(ctx, []Task{t})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// withRoles подставляет текущие роли исполнителей.
func (s *taskService) withRoles(ctx context.Context, tasks []Task) ([]View, error) {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	roles, err := s.users.RolesOf(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(tasks))
	for _, t := range tasks {
		v := View{Task: t}
		if t.AssigneeID != nil {
			v.AssigneeRole = roles[*t.AssigneeID]
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *taskService) assigneeRole(ctx context.Context, id uuid.UUID) (permission.Role, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return permission.RoleNone, apperr.Invalid("assignee does not exist")
		}
		return permission.RoleNone, err
	}
	return u.Role, nil
}

func (s *taskService) mapErr(err error) error {
	if errors.Is(err, ErrTaskNotFound) {
		return apperr.NotFound(ErrTaskNotFound.Error())
	}
	return err
}

// publish отправляет событие асинхронно, не блокируя ответ.
func (s *taskService) publish(kind notification.EventType, t Task, actor permission.Subject, comment *string) {
	if s.publisher == nil {
		return
	}
	event := notification.TaskEvent{
		Type:      kind,
		TaskID:    t.ID.String(),
		Title:     t.Title,
		ActorID:   actor.UserID.String(),
		CreatedBy: t.CreatedByID.String(),
		Status:    string(t.Status),
		Timestamp: time.Now().UTC(),
	}
	if t.AssigneeID != nil {
		event.AssigneeID = t.AssigneeID.String()
	}
	if comment != nil {
		event.Comment = *comment
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Printf("publish %s for task %s: %v", event.Type, event.TaskID, err)
		}
	}()
}

func (s *taskService) Wait() {
	s.wg.Wait()
}

func newHistory(taskID uuid.UUID, status Status, comment *string, actor uuid.UUID, at time.Time) History {
	return History{
		ID:        uuid.New(),
		TaskID:    taskID,
		Status:    status,
		Comment:   comment,
		ActorID:   actor,
		CreatedAt: at,
	}
}

func validateDueDate(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(dueDateLayout, value); err != nil {
		return apperr.Invalid("due_date must be YYYY-MM-DD")
	}
	return nil
}
