package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

var ErrEmptyTaskID = errors.New("taskID is required")

// Directory resolves user ids to e-mail addresses.
type Directory interface {
	EmailsOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type eventHandler struct {
	notifier  Notifier
	directory Directory
	logger    *log.Logger
}

func NewEventHandler(notifier Notifier, directory Directory, logger *log.Logger) EventHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &eventHandler{
		notifier:  notifier,
		directory: directory,
		logger:    logger,
	}
}

func (h *eventHandler) HandleEvent(ctx context.Context, event TaskEvent) error {
	if strings.TrimSpace(event.TaskID) == "" {
		return ErrEmptyTaskID
	}

	var ids []uuid.UUID
	for _, raw := range event.Recipients() {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.logger.Printf("skip recipient %q: %v", raw, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	emails, err := h.directory.EmailsOf(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	var errs []error
	for _, id := range ids {
		email, ok := emails[id]
		if !ok {
			h.logger.Printf("recipient %s not found, skip notification", id)
			continue
		}
		n := NewNotificationFromEvent(event)
		n.RecipientID = id.String()
		n.RecipientEmail = email
		if err := h.notifier.SendNotification(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("send notification to %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
