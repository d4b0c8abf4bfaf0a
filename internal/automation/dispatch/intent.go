// Package dispatch fans a notification intent out to SMS, email and in-app
// channels. A failing channel is recorded, never returned as an error, so
// the job step that produced the intent carries on.
package dispatch

import (
	"github.com/google/uuid"
)

// Channel is one notification transport.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// AllChannels is used when an intent does not restrict its channels.
var AllChannels = []Channel{ChannelSMS, ChannelEmail, ChannelInApp}

// RecipientKind tells apart the people a notification can reach.
type RecipientKind string

const (
	RecipientPatient  RecipientKind = "patient"
	RecipientProvider RecipientKind = "provider"
	RecipientStaff    RecipientKind = "staff"
)

// Recipient carries the addresses for every channel. Empty fields disable
// the matching channel.
type Recipient struct {
	ID     uuid.UUID     `json:"id"`
	Kind   RecipientKind `json:"kind"`
	Name   string        `json:"name"`
	Phone  string        `json:"phone,omitempty"`
	Email  string        `json:"email,omitempty"`
	UserID *uuid.UUID    `json:"userId,omitempty"`
}

// Priority is the notification severity shown to the recipient.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ref points at the record a notification is about.
type Ref struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// Action is an optional call to action.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Intent is produced by a job, consumed by the dispatcher and then discarded.
type Intent struct {
	TenantID  *uuid.UUID
	Recipient Recipient
	Title     string
	Message   string
	Priority  Priority
	Related   *Ref
	Action    *Action
	// Channels limits delivery; empty means all channels.
	Channels []Channel
	// Escalate sends an in-app and email copy to administrators and front desk.
	Escalate bool
}

func (i Intent) channels() []Channel {
	if len(i.Channels) == 0 {
		return AllChannels
	}
	return i.Channels
}

// ChannelResult is one attempt on one channel for one recipient.
type ChannelResult struct {
	Channel     Channel   `json:"channel"`
	RecipientID uuid.UUID `json:"recipientId"`
	Sent        bool      `json:"sent"`
	Error       string    `json:"error,omitempty"`
}

// Result holds every attempt made for an intent.
type Result struct {
	Channels    []ChannelResult `json:"channels"`
	Escalations []ChannelResult `json:"escalations,omitempty"`
}

// Delivered is true when at least one channel reached the primary recipient.
func (r Result) Delivered() bool {
	for _, c := range r.Channels {
		if c.Sent {
			return true
		}
	}
	return false
}

// Sent reports whether the given channel reached the primary recipient.
func (r Result) Sent(channel Channel) bool {
	for _, c := range r.Channels {
		if c.Channel == channel && c.Sent {
			return true
		}
	}
	return false
}
