// Package mail renders and delivers the transactional emails the auth flows
// depend on: verification codes, password reset codes and the post-verify
// welcome note.
package mail

import "context"

// Template names a renderable email.
type Template string

const (
	TemplateVerification  Template = "verification"
	TemplateWelcome       Template = "welcome"
	TemplatePasswordReset Template = "password_reset"
)

// Message is one outbound email.
type Message struct {
	To        string
	Template  Template
	Variables map[string]string
}

// Mailer delivers a rendered message. Implementations must respect ctx
// cancellation since delivery goes over the network.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
