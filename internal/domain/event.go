package domain

import (
	"time"
)

// EventStatus describes the delivery state of a communication event.
// It mainly matters for MMS, whose notification text depends on whether
// the message is waiting for a manual download or failed to transfer.
type EventStatus string

const (
	StatusUnknown            EventStatus = ""
	StatusDelivered          EventStatus = "delivered"
	StatusManualNotification EventStatus = "manual-notification"
	StatusTemporarilyFailed  EventStatus = "temporarily-failed"
	StatusPermanentlyFailed  EventStatus = "permanently-failed"
)

// Failed reports whether the status describes a failed transfer.
func (s EventStatus) Failed() bool {
	return s == StatusTemporarilyFailed || s == StatusPermanentlyFailed
}

// Direction describes whether an event was received or sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Attachment is one non-text part of an MMS event.
type Attachment struct {
	ContentType string `json:"content_type"`
	Path        string `json:"path,omitempty"`
}

// IsDisplayable reports whether the part counts as an attachment for
// notification text. Plain text and presentation markup are rendered
// inline and excluded.
func (a Attachment) IsDisplayable() bool {
	return !hasPrefix(a.ContentType, "text/plain") && !hasPrefix(a.ContentType, "application/smil")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Event is one communication event delivered by the event source.
type Event struct {
	Type        EventType    `json:"type"`
	Account     string       `json:"account"`
	RemoteUID   string       `json:"remote_uid"`
	Direction   Direction    `json:"direction"`
	FreeText    string       `json:"free_text"`
	Subject     string       `json:"subject,omitempty"`
	Token       string       `json:"token"`
	Status      EventStatus  `json:"status,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	GroupID     string       `json:"group_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	VCardLabel  string       `json:"vcard_label,omitempty"`
}

// Recipient returns the event's remote party identity.
func (e Event) Recipient() Recipient {
	return NewRecipient(e.Account, e.RemoteUID)
}

// AttachmentCount returns the number of displayable attachments.
func (e Event) AttachmentCount() int {
	count := 0
	for _, part := range e.Attachments {
		if part.IsDisplayable() {
			count++
		}
	}
	return count
}
