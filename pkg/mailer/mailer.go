package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CommentNotification carries everything needed to tell a project owner about
// a new comment on their project.
type CommentNotification struct {
	ProjectID    string
	ProjectTitle string
	StudentName  string
	StudentEmail string
	AuthorName   string
	Text         string
}

// Subject builds the notification subject line.
func (n CommentNotification) Subject() string {
	return fmt.Sprintf("Nuevo comentario en tu proyecto: %s", n.ProjectTitle)
}

// Body builds the plain-text notification body.
func (n CommentNotification) Body() string {
	return fmt.Sprintf("Hola %s,\n\n%s ha comentado tu proyecto \"%s\":\n\n%s\n", n.StudentName, n.AuthorName, n.ProjectTitle, n.Text)
}

// Notifier delivers comment notifications to project owners. Implementations
// report failure through the returned error; callers decide whether the
// failure is fatal.
type Notifier interface {
	NotifyCommentCreated(ctx context.Context, n CommentNotification) error
}

// ConsoleNotifier logs notifications instead of delivering them. Used in
// development and as the default backend.
type ConsoleNotifier struct {
	logger *zap.Logger
}

// NewConsoleNotifier constructs a ConsoleNotifier.
func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleNotifier{logger: logger}
}

// NotifyCommentCreated logs the would-be email.
func (m *ConsoleNotifier) NotifyCommentCreated(_ context.Context, n CommentNotification) error {
	if n.StudentEmail == "" {
		return fmt.Errorf("student %s has no email address", n.StudentName)
	}
	m.logger.Info("comment notification",
		zap.String("to", n.StudentEmail),
		zap.String("subject", n.Subject()),
		zap.String("project_id", n.ProjectID),
	)
	return nil
}
