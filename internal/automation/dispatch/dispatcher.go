package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
)

// SMSSender delivers a text message to an E.164 or national number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// EmailSender delivers an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// InAppMessage is what the in-app channel stores for a portal user.
type InAppMessage struct {
	TenantID     *uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	Category     string
	ResourceID   *uuid.UUID
	ResourceType string
	ActionURL    string
}

// InAppNotifier stores an in-app notification.
type InAppNotifier interface {
	Notify(ctx context.Context, msg InAppMessage) error
}

// DeliveryRecord is one logged attempt.
type DeliveryRecord struct {
	TenantID      *uuid.UUID
	RecipientID   uuid.UUID
	RecipientKind RecipientKind
	Channel       Channel
	Sent          bool
	Error         string
	Related       *Ref
}

// DeliveryLog persists attempts for auditing.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
}

// EmailRenderer turns an intent into the HTML body for one recipient.
type EmailRenderer func(intent Intent, to Recipient) (string, error)

var (
	errNotConfigured = errors.New("channel not configured")
	errNoAddress     = errors.New("recipient has no address for channel")
)

// Options wires the dispatcher. Nil channels are reported as not configured.
type Options struct {
	SMS        SMSSender
	Email      EmailSender
	InApp      InAppNotifier
	Roster     *RosterCache
	Render     EmailRenderer
	Deliveries DeliveryLog
	Timeout    time.Duration
	Log        *logger.Logger
	// SubjectTag prefixes every email subject, e.g. the clinic brand.
	SubjectTag string
}

// Dispatcher sends intents.
type Dispatcher struct {
	sms        SMSSender
	email      EmailSender
	inApp      InAppNotifier
	roster     *RosterCache
	render     EmailRenderer
	deliveries DeliveryLog
	timeout    time.Duration
	log        *logger.Logger
	subjectTag string
}

// New returns a dispatcher. Timeout defaults to ten seconds per channel call.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		sms:        opts.SMS,
		email:      opts.Email,
		inApp:      opts.InApp,
		roster:     opts.Roster,
		render:     opts.Render,
		deliveries: opts.Deliveries,
		timeout:    opts.Timeout,
		log:        opts.Log,
		subjectTag: opts.SubjectTag,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.render == nil {
		d.render = PlainRenderer
	}
	if d.log == nil {
		d.log = logger.Nop()
	}
	return d
}

// Send attempts every requested channel for the primary recipient, then the
// escalation copies. It never returns an error.
func (d *Dispatcher) Send(ctx context.Context, intent Intent) Result {
	var res Result
	for _, ch := range intent.channels() {
		res.Channels = append(res.Channels, d.attempt(ctx, intent, intent.Recipient, ch))
	}

	if intent.Escalate {
		res.Escalations = d.escalate(ctx, intent)
	}
	return res
}

// Recipients returns the tenant's staff holding any of the roles.
func (d *Dispatcher) Recipients(ctx context.Context, tenantID *uuid.UUID, roles ...Role) ([]Recipient, error) {
	if d.roster == nil {
		return nil, nil
	}
	roster, err := d.roster.Get(ctx, tenantID)
	if err != nil {
		return nil, apperr.DependencyUnavailable("load staff roster", err)
	}
	return roster.WithRoles(roles...), nil
}

func (d *Dispatcher) escalate(ctx context.Context, intent Intent) []ChannelResult {
	staff, err := d.Recipients(ctx, intent.TenantID, EscalationRoles...)
	if err != nil {
		d.log.WithContext(ctx).Warn("escalation roster unavailable", "error", err, "tenant", tenantLabel(intent.TenantID))
		return []ChannelResult{{Channel: ChannelInApp, Error: err.Error()}}
	}

	copyIntent := intent
	copyIntent.Title = "[Escalation] " + intent.Title
	copyIntent.Escalate = false

	results := make([]ChannelResult, 0, len(staff)*2)
	for _, member := range staff {
		if member.ID == intent.Recipient.ID {
			continue
		}
		for _, ch := range []Channel{ChannelInApp, ChannelEmail} {
			results = append(results, d.attempt(ctx, copyIntent, member, ch))
		}
	}
	return results
}

func (d *Dispatcher) attempt(ctx context.Context, intent Intent, to Recipient, ch Channel) ChannelResult {
	err := d.deliver(ctx, intent, to, ch)
	res := ChannelResult{Channel: ch, RecipientID: to.ID, Sent: err == nil}
	if err != nil {
		res.Error = err.Error()
	}

	d.log.WithContext(ctx).ChannelAttempt(string(ch), to.ID.String(), res.Sent, err)
	if d.deliveries != nil {
		rec := DeliveryRecord{
			TenantID:      intent.TenantID,
			RecipientID:   to.ID,
			RecipientKind: to.Kind,
			Channel:       ch,
			Sent:          res.Sent,
			Error:         res.Error,
			Related:       intent.Related,
		}
		if logErr := d.deliveries.RecordDelivery(ctx, rec); logErr != nil {
			d.log.WithContext(ctx).Warn("failed to record notification delivery", "error", logErr, "channel", ch)
		}
	}
	return res
}

// deliver runs one channel call under its own timeout and turns panics into
// channel delivery errors.
func (d *Dispatcher) deliver(ctx context.Context, intent Intent, to Recipient, ch Channel) (err error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = apperr.ChannelDelivery(string(ch), fmt.Errorf("panic: %v", r))
		}
	}()

	switch ch {
	case ChannelSMS:
		if d.sms == nil {
			return errNotConfigured
		}
		if strings.TrimSpace(to.Phone) == "" {
			return errNoAddress
		}
		err = d.sms.SendSMS(callCtx, to.Phone, smsText(intent))
	case ChannelEmail:
		if d.email == nil {
			return errNotConfigured
		}
		if strings.TrimSpace(to.Email) == "" {
			return errNoAddress
		}
		body, renderErr := d.render(intent, to)
		if renderErr != nil {
			return apperr.ChannelDelivery(string(ch), renderErr)
		}
		err = d.email.SendEmail(callCtx, to.Email, d.subject(intent), body)
	case ChannelInApp:
		if d.inApp == nil {
			return errNotConfigured
		}
		if to.UserID == nil {
			return errNoAddress
		}
		err = d.inApp.Notify(callCtx, inAppMessage(intent, *to.UserID))
	default:
		return fmt.Errorf("unknown channel %q", ch)
	}

	if err != nil {
		return apperr.ChannelDelivery(string(ch), err)
	}
	return nil
}

func (d *Dispatcher) subject(intent Intent) string {
	if d.subjectTag == "" {
		return intent.Title
	}
	return d.subjectTag + " " + intent.Title
}

func smsText(intent Intent) string {
	text := intent.Title + ": " + intent.Message
	if intent.Action != nil && intent.Action.URL != "" {
		text += " " + intent.Action.URL
	}
	return text
}

func inAppMessage(intent Intent, userID uuid.UUID) InAppMessage {
	msg := InAppMessage{
		TenantID: intent.TenantID,
		UserID:   userID,
		Title:    intent.Title,
		Content:  intent.Message,
		Category: inAppCategory(intent.Priority),
	}
	if intent.Related != nil {
		id := intent.Related.ID
		msg.ResourceID = &id
		msg.ResourceType = intent.Related.Type
	}
	if intent.Action != nil {
		msg.ActionURL = intent.Action.URL
	}
	return msg
}

func inAppCategory(p Priority) string {
	switch p {
	case PriorityUrgent:
		return "error"
	case PriorityHigh:
		return "warning"
	default:
		return "info"
	}
}

// PlainRenderer is the fallback email body: escaped text with an optional link.
func PlainRenderer(intent Intent, to Recipient) (string, error) {
	var b strings.Builder
	if to.Name != "" {
		b.WriteString("<p>" + html.EscapeString(to.Name) + ",</p>")
	}
	b.WriteString("<p>" + html.EscapeString(intent.Message) + "</p>")
	if intent.Action != nil && intent.Action.URL != "" {
		b.WriteString(`<p><a href="` + html.EscapeString(intent.Action.URL) + `">` + html.EscapeString(intent.Action.Label) + "</a></p>")
	}
	return b.String(), nil
}

func tenantLabel(tenantID *uuid.UUID) string {
	if tenantID == nil {
		return "untenanted"
	}
	return tenantID.String()
}
