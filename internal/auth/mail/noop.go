package mail

import (
	"context"

	"github.com/tradehall/tradehall/pkg/slogx"
)

// NoopMailer logs instead of sending. Used when no API key is configured,
// which keeps local development working without a Resend account.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Info("email suppressed (no mailer configured)",
		"template", msg.Template,
		"to", msg.To,
	)
	return nil
}
