package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridNotifier delivers comment notifications through the SendGrid API.
type SendGridNotifier struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGridNotifier constructs a SendGridNotifier.
func NewSendGridNotifier(key, fromName, fromEmail string, logger *zap.Logger) *SendGridNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridNotifier{
		key:    key,
		from:   sgmail.NewEmail(fromName, fromEmail),
		logger: logger,
	}
}

// NotifyCommentCreated sends the notification email to the project owner.
func (m *SendGridNotifier) NotifyCommentCreated(ctx context.Context, n CommentNotification) error {
	if n.StudentEmail == "" {
		return fmt.Errorf("student %s has no email address", n.StudentName)
	}

	p := sgmail.NewPersonalization()
	p.Subject = n.Subject()
	p.AddTos(sgmail.NewEmail(n.StudentName, n.StudentEmail))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", n.Body()))

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected notification: status %d", res.StatusCode)
	}

	m.logger.Debug("comment notification sent",
		zap.String("to", n.StudentEmail),
		zap.String("project_id", n.ProjectID),
	)
	return nil
}
