package notification

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventTaskCreated   EventType = "task_created"
	EventStatusChanged EventType = "task_status_changed"
	EventTaskAssigned  EventType = "task_assigned"
	EventTaskDeleted   EventType = "task_deleted"
)

// TaskEvent: событие изменения задачи, публикуется в Kafka.
type TaskEvent struct {
	Type       EventType `json:"type"`
	TaskID     string    `json:"taskId"`
	Title      string    `json:"title"`
	ActorID    string    `json:"actorId"`
	CreatedBy  string    `json:"createdBy"`
	AssigneeID string    `json:"assigneeId,omitempty"`
	Status     string    `json:"status"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notification описывает уведомление для одного получателя.
type Notification struct {
	Type           EventType
	TaskID         string
	Title          string
	RecipientID    string
	RecipientEmail string
	Message        string
	Comment        string
	CreatedAt      time.Time
}

// Summary is the one-line description used in mails and logs.
func (e TaskEvent) Summary() string {
	switch e.Type {
	case EventTaskCreated:
		return fmt.Sprintf("task created with status %s", e.Status)
	case EventStatusChanged:
		return fmt.Sprintf("status changed to %s", e.Status)
	case EventTaskAssigned:
		return "task assigned"
	case EventTaskDeleted:
		return "task deleted"
	default:
		return string(e.Type)
	}
}

// Recipients returns the creator and assignee ids without the actor.
func (e TaskEvent) Recipients() []string {
	seen := map[string]bool{e.ActorID: true, "": true}
	var out []string
	for _, id := range []string{e.AssigneeID, e.CreatedBy} {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func NewNotificationFromEvent(event TaskEvent) Notification {
	return Notification{
		Type:      event.Type,
		TaskID:    event.TaskID,
		Title:     event.Title,
		Message:   event.Summary(),
		Comment:   event.Comment,
		CreatedAt: time.Now(),
	}
}
