package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	log "github.com/sirupsen/logrus"
)

type Email struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, e Email) (string, error)
}

type ResendSender struct {
	client *resend.Client
	From   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), From: from}
}

func (s *ResendSender) Send(ctx context.Context, e Email) (string, error) {
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
	})
	if err != nil {
		return "", errors.Wrap(err, "resend send")
	}
	return resp.Id, nil
}

// LogSender only logs the email. Used when no email provider key is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, e Email) (string, error) {
	id := "log-" + uuid.NewString()
	log.WithFields(log.Fields{"to": e.To, "subject": e.Subject, "bytes": len(e.HTML), "message_id": id}).
		Info("email not sent: no provider configured")
	return id, nil
}
