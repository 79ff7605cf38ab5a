package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// subjects per template. Rendering fails on unknown templates rather than
// sending an empty subject line.
var subjects = map[Template]string{
	TemplateVerification:  "Verify your email address",
	TemplateWelcome:       "Welcome aboard",
	TemplatePasswordReset: "Reset your password",
}

// Render produces the subject and HTML body for a message.
func Render(msg Message) (subject, body string, err error) {
	subject, ok := subjects[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", msg.Template)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(msg.Template)+".html", msg.Variables); err != nil {
		return "", "", fmt.Errorf("mail: render %q: %w", msg.Template, err)
	}
	return subject, buf.String(), nil
}
