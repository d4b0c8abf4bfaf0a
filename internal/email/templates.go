package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// NotificationData fills the shared notification layout.
type NotificationData struct {
	ClinicName string
	Title      string
	Body       string
	Urgent     bool
	CTALabel   string
	CTAURL     string
}

// RenderNotification renders the notification layout.
func RenderNotification(data NotificationData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "notification.html", data); err != nil {
		return "", fmt.Errorf("render notification email: %w", err)
	}
	return buf.String(), nil
}
