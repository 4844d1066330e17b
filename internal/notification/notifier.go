package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Oniqq60/task_system_control/internal/mailer"
)

// Notifier отвечает за доставку уведомлений
type Notifier interface {
	SendNotification(ctx context.Context, notification Notification) error
}

type mailNotifier struct {
	sender mailer.Sender
}

func NewMailNotifier(sender mailer.Sender) Notifier {
	return &mailNotifier{sender: sender}
}

func (n *mailNotifier) SendNotification(ctx context.Context, notification Notification) error {
	msg, err := mailer.TaskUpdate(notification.RecipientEmail, mailer.TaskUpdateData{
		TaskID:  notification.TaskID,
		Title:   notification.Title,
		Summary: notification.Message,
		Comment: notification.Comment,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}

type logNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) SendNotification(ctx context.Context, notification Notification) error {
	n.logger.Println(fmt.Sprintf(
		"[NOTIFICATION] type=%s task=%s recipient=%s message=%q at=%s",
		notification.Type,
		notification.TaskID,
		notification.RecipientID,
		notification.Message,
		notification.CreatedAt.Format(time.RFC3339),
	))
	return nil
}
