package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/tradehall/tradehall/pkg/slogx"
)

const sendTimeout = 10 * time.Second

// ResendMailer delivers mail through the Resend HTTP API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("mail: send %q to %s: %w", msg.Template, msg.To, err)
	}

	slogx.FromContext(ctx).Debug("email sent",
		"template", msg.Template,
		"message_id", sent.Id,
	)
	return nil
}
