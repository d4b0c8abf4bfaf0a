package email

import (
	"strings"
	"testing"
)

func TestRenderNotificationEscapesContent(t *testing.T) {
	html, err := RenderNotification(NotificationData{
		ClinicName: "Noord Clinic",
		Title:      "Lab results ready",
		Body:       "Hi <b>Ada</b>, your results for HbA1c are available.",
		CTALabel:   "View results",
		CTAURL:     "https://portal.example.com/labs/1",
	})
	if err != nil {
		t.Fatalf("RenderNotification: %v", err)
	}

	if strings.Contains(html, "<b>Ada</b>") {
		t.Fatal("message body must be escaped")
	}
	for _, want := range []string{"Lab results ready", "Noord Clinic", "https://portal.example.com/labs/1", "View results"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestRenderNotificationWithoutAction(t *testing.T) {
	html, err := RenderNotification(NotificationData{Title: "Membership lapsed", Body: "Your plan ended yesterday."})
	if err != nil {
		t.Fatalf("RenderNotification: %v", err)
	}
	if strings.Contains(html, "<a href") {
		t.Fatal("no button expected without a URL")
	}
}

type emailConfigStub struct{ enabled bool }

func (c emailConfigStub) GetEmailEnabled() bool       { return c.enabled }
func (c emailConfigStub) GetSMTPHost() string         { return "smtp.example.com" }
func (c emailConfigStub) GetSMTPPort() int            { return 587 }
func (c emailConfigStub) GetSMTPUsername() string     { return "" }
func (c emailConfigStub) GetSMTPPassword() string     { return "" }
func (c emailConfigStub) GetEmailFromName() string    { return "Clinic" }
func (c emailConfigStub) GetEmailFromAddress() string { return "noreply@example.com" }

func TestNewSMTPSenderDisabled(t *testing.T) {
	if NewSMTPSender(emailConfigStub{}) != nil {
		t.Fatal("disabled email should not build a sender")
	}
	sender := NewSMTPSender(emailConfigStub{enabled: true})
	if sender == nil {
		t.Fatal("expected sender")
	}
	if _, err := sender.message("not an address", "s", "b"); err == nil {
		t.Fatal("invalid recipient should be rejected")
	}
}
