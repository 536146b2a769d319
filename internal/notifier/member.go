// Package notifier implements the notification aggregation core: member
// notifications for individual communication events, notification groups
// that compute one aggregate notification per conversation or category, and
// the registry that routes events, contact resolutions and removals to the
// right group.
package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/ports"
)

// Member is one individual event's notification record inside a group.
// It is owned by exactly one of the registry's pending-resolution list or
// one group's member list at any time.
type Member struct {
	account    string
	remoteUID  string
	eventType  domain.EventType
	targetID   string
	chatType   domain.ChatType
	chatName   string
	name       string
	resolved   bool
	text       string
	eventToken string
	timestamp  time.Time
	hidden     bool
	restored   bool

	// pending is set whenever display-relevant state changes and cleared
	// on publish, so the group's recompute republishes only stale members.
	pending bool
	handle  uint32

	onChanged func(*Member)
}

// memberData is the opaque blob embedded in a published member record,
// sufficient to rebuild the member after a daemon restart.
type memberData struct {
	Account    string           `json:"account"`
	RemoteUID  string           `json:"remote_uid"`
	EventType  domain.EventType `json:"event_type"`
	TargetID   string           `json:"target_id,omitempty"`
	ChatType   domain.ChatType  `json:"chat_type"`
	ChatName   string           `json:"chat_name,omitempty"`
	EventToken string           `json:"event_token,omitempty"`
	Text       string           `json:"text"`
	Hidden     bool             `json:"hidden"`
}

// NewMember creates a member notification for a new event. Members start
// hidden; a Voice or Voicemail group unhides its sole member on attach.
func NewMember(eventType domain.EventType, account, remoteUID, targetID string, chatType domain.ChatType) *Member {
	token := uuid.NewString()
	return &Member{
		account:   account,
		remoteUID: remoteUID,
		eventType: eventType,
		targetID:  targetID,
		chatType:  chatType,
		// Unresolved members display their remote uid until the contact
		// lookup supplies a better name.
		name:       remoteUID,
		eventToken: token,
		hidden:     true,
		pending:    true,
	}
}

// RestoreMember rebuilds a member from a record read back from the sink.
// It returns an error when the embedded blob is missing or malformed.
func RestoreMember(rec ports.StoredRecord) (*Member, error) {
	if len(rec.MemberData) == 0 {
		return nil, fmt.Errorf("restore member %d: no membership data", rec.ID)
	}
	var data memberData
	if err := json.Unmarshal(rec.MemberData, &data); err != nil {
		return nil, fmt.Errorf("restore member %d: %w", rec.ID, err)
	}
	if !data.EventType.IsValid() || data.Account == "" {
		return nil, fmt.Errorf("restore member %d: incomplete membership data", rec.ID)
	}
	return &Member{
		account:    data.Account,
		remoteUID:  data.RemoteUID,
		eventType:  data.EventType,
		targetID:   data.TargetID,
		chatType:   data.ChatType,
		chatName:   data.ChatName,
		name:       rec.Summary,
		text:       data.Text,
		eventToken: data.EventToken,
		timestamp:  rec.Timestamp,
		hidden:     data.Hidden,
		restored:   true,
		handle:     rec.ID,
	}, nil
}

// Collection returns the member's notification collection.
func (m *Member) Collection() domain.Collection {
	return domain.CollectionFor(m.eventType)
}

// Account returns the member's local account identifier.
func (m *Member) Account() string { return m.account }

// RemoteUID returns the member's remote party identifier.
func (m *Member) RemoteUID() string { return m.remoteUID }

// EventType returns the member's event type.
func (m *Member) EventType() domain.EventType { return m.eventType }

// ChatType returns the member's conversation flavor.
func (m *Member) ChatType() domain.ChatType { return m.chatType }

// ChatName returns the group-chat display name, if any.
func (m *Member) ChatName() string { return m.chatName }

// EventToken returns the member's event token used for edit matching.
func (m *Member) EventToken() string { return m.eventToken }

// Text returns the member's display text.
func (m *Member) Text() string { return m.text }

// Timestamp returns the member's event timestamp; zero until published.
func (m *Member) Timestamp() time.Time { return m.timestamp }

// Hidden reports whether the member is suppressed from direct display.
func (m *Member) Hidden() bool { return m.hidden }

// Restored reports whether the member was rebuilt from stored state.
func (m *Member) Restored() bool { return m.restored }

// Pending reports whether the member has unpublished changes.
func (m *Member) Pending() bool { return m.pending }

// Recipient returns the member's remote party identity.
func (m *Member) Recipient() domain.Recipient {
	return domain.NewRecipient(m.account, m.remoteUID)
}

// TargetRecipient returns the conversation identity used for
// observed-conversation matching: the remote party for person-to-person
// chats and the channel target for multi-user chats.
func (m *Member) TargetRecipient() domain.Recipient {
	if m.chatType == domain.ChatTypeP2P {
		return m.Recipient()
	}
	return domain.NewRecipient(m.account, m.targetID)
}

// Name returns the display name used in summaries: the chat name for group
// conversations, otherwise the resolved contact name or remote uid.
func (m *Member) Name() string {
	if m.chatName != "" {
		return m.chatName
	}
	return m.name
}

// SetEventToken overrides the generated token with the event's own.
func (m *Member) SetEventToken(token string) {
	if token != "" {
		m.eventToken = token
	}
}

// SetText updates the member's display text, marking it for republish.
func (m *Member) SetText(text string) {
	if m.text == text {
		return
	}
	m.text = text
	m.markPending()
}

// SetChatName updates the group-chat display name.
func (m *Member) SetChatName(chatName string) {
	if m.chatName == chatName {
		return
	}
	m.chatName = chatName
	m.markPending()
}

// SetTimestamp updates the member's event timestamp.
func (m *Member) SetTimestamp(ts time.Time) {
	if m.timestamp.Equal(ts) {
		return
	}
	m.timestamp = ts
	m.markPending()
}

// SetHidden flips the member's display suppression.
func (m *Member) SetHidden(hidden bool) {
	if m.hidden == hidden {
		return
	}
	m.hidden = hidden
	m.markPending()
}

// ApplyResolution applies a contact lookup result to the member.
func (m *Member) ApplyResolution(res ports.Resolution) {
	m.resolved = m.resolved || res.Resolved
	if res.Name != "" && res.Name != m.name {
		m.name = res.Name
		m.markPending()
	}
}

func (m *Member) markPending() {
	m.pending = true
	if m.onChanged != nil {
		m.onChanged(m)
	}
}

// publish writes the member's own notification record to the sink,
// assigning a timestamp first if the event never carried one. Publish
// failures leave the member pending for the next recompute.
func (m *Member) publish(sink ports.NotificationSink) error {
	if m.timestamp.IsZero() {
		m.timestamp = time.Now()
	}
	collection := m.Collection()
	data, err := json.Marshal(memberData{
		Account:    m.account,
		RemoteUID:  m.remoteUID,
		EventType:  m.eventType,
		TargetID:   m.targetID,
		ChatType:   m.chatType,
		ChatName:   m.chatName,
		EventToken: m.eventToken,
		Text:       m.text,
		Hidden:     m.hidden,
	})
	if err != nil {
		return fmt.Errorf("encode member data: %w", err)
	}
	id, err := sink.Publish(&ports.NotificationRecord{
		ReplacesID: m.handle,
		AppName:    collection.GroupName(),
		Category:   collection.MemberCategory(),
		Summary:    m.Name(),
		Body:       m.text,
		ItemCount:  1,
		Timestamp:  m.timestamp,
		Hidden:     m.hidden,
		MemberData: data,
	})
	if err != nil {
		return err
	}
	m.handle = id
	m.pending = false
	return nil
}

// release closes the member's platform record, if any.
func (m *Member) release(sink ports.NotificationSink) {
	if m.handle != 0 {
		_ = sink.Close(m.handle)
		m.handle = 0
	}
}
