// Package domain provides the domain layer for communication notifications.
// It contains the event model, notification categories, and recipient
// identity matching.
package domain

// Collection is the notification category a communication event belongs to.
type Collection string

const (
	// CollectionMessaging covers SMS, MMS and IM events.
	CollectionMessaging Collection = "messaging"
	// CollectionVoice covers missed call events.
	CollectionVoice Collection = "voice"
	// CollectionVoicemail covers voicemail events.
	CollectionVoicemail Collection = "voicemail"
)

// IsValid checks if the collection is valid.
func (c Collection) IsValid() bool {
	switch c {
	case CollectionMessaging, CollectionVoice, CollectionVoicemail:
		return true
	default:
		return false
	}
}

// String returns the string representation of the collection.
func (c Collection) String() string {
	return string(c)
}

// GroupName returns the human-readable label for the collection's
// notification group.
func (c Collection) GroupName() string {
	switch c {
	case CollectionVoicemail:
		return "Voicemail"
	case CollectionVoice:
		return "Missed calls"
	case CollectionMessaging:
		return "Messages"
	}
	return ""
}

// GroupCategory returns the platform category identifier for the
// collection's aggregate notification.
func (c Collection) GroupCategory() string {
	switch c {
	case CollectionVoicemail:
		return "x-commtray.messaging.voicemail.group"
	case CollectionVoice:
		return "x-commtray.call.missed.group"
	case CollectionMessaging:
		return "x-commtray.messaging.group"
	}
	return ""
}

// MemberCategory returns the platform category identifier for an individual
// member notification of the collection.
func (c Collection) MemberCategory() string {
	switch c {
	case CollectionVoicemail:
		return "x-commtray.messaging.voicemail"
	case CollectionVoice:
		return "x-commtray.call.missed"
	case CollectionMessaging:
		return "x-commtray.messaging"
	}
	return ""
}

// EventType identifies the kind of communication event.
type EventType string

const (
	EventTypeIM           EventType = "im"
	EventTypeSMS          EventType = "sms"
	EventTypeMMS          EventType = "mms"
	EventTypeCall         EventType = "call"
	EventTypeVoicemail    EventType = "voicemail"
	EventTypeVoicemailSMS EventType = "voicemail-sms"
)

// IsValid checks if the event type is valid.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeIM, EventTypeSMS, EventTypeMMS, EventTypeCall, EventTypeVoicemail, EventTypeVoicemailSMS:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsMessage reports whether the event type is a message event
// (IM or SMS/MMS).
func (t EventType) IsMessage() bool {
	switch t {
	case EventTypeIM, EventTypeSMS, EventTypeMMS:
		return true
	default:
		return false
	}
}

// CollectionFor maps an event type to its notification collection.
func CollectionFor(t EventType) Collection {
	switch t {
	case EventTypeCall:
		return CollectionVoice
	case EventTypeVoicemail:
		return CollectionVoicemail
	default:
		// IM, SMS, MMS and voicemail-indicator SMS all land in the
		// messaging collection.
		return CollectionMessaging
	}
}

// MessageEventTypes returns the event types removed when the inbox view
// becomes the active observer.
func MessageEventTypes() []EventType {
	return []EventType{EventTypeIM, EventTypeSMS, EventTypeMMS, EventTypeVoicemailSMS}
}

// ChatType identifies the conversation flavor of a messaging event.
type ChatType string

const (
	ChatTypeP2P     ChatType = "p2p"
	ChatTypeRoom    ChatType = "room"
	ChatTypeUnnamed ChatType = "unnamed"
)

// IsValid checks if the chat type is valid.
func (t ChatType) IsValid() bool {
	switch t {
	case ChatTypeP2P, ChatTypeRoom, ChatTypeUnnamed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the chat type.
func (t ChatType) String() string {
	return string(t)
}

// IsMultiUser reports whether the chat type describes a group conversation.
func (t ChatType) IsMultiUser() bool {
	return t == ChatTypeRoom || t == ChatTypeUnnamed
}
