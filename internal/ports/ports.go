// Package ports defines application boundary interfaces used by the
// notification core. The daemon wires concrete collaborators (platform
// notification store, contact directory, audio feedback, telephony) behind
// these interfaces; the core never talks to a platform API directly.
package ports

import (
	"time"

	"github.com/commtray/commtrayd/internal/domain"
)

// CloseReason explains why a published notification was closed.
type CloseReason string

const (
	// CloseDismissed means the user dismissed the notification.
	CloseDismissed CloseReason = "dismissed"
	// CloseExpired means the notification timed out on the platform side.
	CloseExpired CloseReason = "expired"
	// CloseRequested means the daemon closed the notification itself.
	CloseRequested CloseReason = "requested"
)

// RemoteAction describes an activatable action attached to a notification,
// invoked out of process when the user taps the notification.
type RemoteAction struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Service     string   `json:"service"`
	Path        string   `json:"path"`
	Interface   string   `json:"interface"`
	Method      string   `json:"method"`
	Arguments   []string `json:"arguments,omitempty"`
}

// NotificationRecord is a notification to publish or update. ReplacesID
// zero publishes a new record; non-zero updates the record in place.
type NotificationRecord struct {
	ReplacesID uint32
	AppName    string
	Category   string
	Summary    string
	Body       string
	ItemCount  int
	Timestamp  time.Time
	Hidden     bool
	Actions    []RemoteAction
	// MemberData is the opaque membership blob embedded in individual
	// member records so groups can be rebuilt after a restart. Aggregate
	// records carry none.
	MemberData []byte
}

// StoredRecord is a still-open notification read back from the sink at
// startup.
type StoredRecord struct {
	ID         uint32
	Category   string
	Summary    string
	Body       string
	ItemCount  int
	Timestamp  time.Time
	Hidden     bool
	MemberData []byte
}

// NotificationSink publishes notifications to the platform and retains the
// set of open records across daemon restarts. All calls are fire-and-forget
// from the core's point of view; user dismissals come back later through
// the dispatch loop as closed signals.
type NotificationSink interface {
	// Publish creates or updates a notification and returns its id.
	Publish(rec *NotificationRecord) (uint32, error)
	// Close closes a published notification by id. Closing an unknown id
	// is a no-op.
	Close(id uint32) error
	// PublishPreview raises a transient preview banner. Previews have no
	// persistent identity and cannot be updated or closed.
	PublishPreview(rec *NotificationRecord) error
	// OpenRecords returns every still-open notification record.
	OpenRecords() ([]StoredRecord, error)
}

// Resolution is the outcome of one contact lookup.
type Resolution struct {
	Recipient domain.Recipient
	Name      string
	Resolved  bool
}

// ContactResolver performs asynchronous contact-identity lookups. Requests
// are queued; one batch-completion signal is delivered through the dispatch
// loop when every queued recipient has been looked up.
type ContactResolver interface {
	Request(recipient domain.Recipient)
}

// ContactEvents is the push interface for contact data changes, delivered
// by the dispatcher to the notification core.
type ContactEvents interface {
	OnContactChanged(resolutions []Resolution)
	OnContactInfoChanged(resolutions []Resolution)
	OnResolutionFinished(resolutions []Resolution)
}

// CuePlayer plays named feedback cues (message arrival tones). Play is
// fire-and-forget; completion arrives asynchronously and the player keeps
// at most one event outstanding.
type CuePlayer interface {
	Play(event string, properties map[string]string)
}

// Conversation identifies one conversation observed by the UI.
type Conversation struct {
	Recipient domain.Recipient
	ChatType  domain.ChatType
}

// ObservedState reports which views the UI is currently showing, so that
// events already visible on screen do not also raise notifications.
type ObservedState interface {
	// InboxObserved reports whether the message inbox view is active.
	InboxObserved() bool
	// InboxFilterAccount returns the account the inbox is filtered to, or
	// empty when unfiltered.
	InboxFilterAccount() string
	// ObservedConversations returns the conversations currently on screen.
	ObservedConversations() []Conversation
}

// MessageWaitingState is one modem's voicemail-waiting indicator.
type MessageWaitingState struct {
	ModemPath     string
	Waiting       bool
	MessageCount  int
	MailboxNumber string
}

// MessageWaitingSource enumerates modems whose voicemail-waiting state is
// tracked. State changes themselves arrive through the dispatch loop.
type MessageWaitingSource interface {
	Modems() []string
}
