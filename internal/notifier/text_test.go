package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commtray/commtrayd/internal/domain"
)

func TestPluralPhrases(t *testing.T) {
	assert.Equal(t, "1 new message", NewMessagesText(1))
	assert.Equal(t, "3 new messages", NewMessagesText(3))
	assert.Equal(t, "1 missed call", MissedCallsText(1))
	assert.Equal(t, "2 missed calls", MissedCallsText(2))
	assert.Equal(t, "1 new voicemail", VoicemailWaitingText(1))
	assert.Equal(t, "4 new voicemails", VoicemailWaitingText(4))
}

func TestEventText(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		details string
		want    string
	}{
		{
			name:  "sms free text",
			event: domain.Event{Type: domain.EventTypeSMS, FreeText: "hello there"},
			want:  "hello there",
		},
		{
			name:  "im with contact card",
			event: domain.Event{Type: domain.EventTypeIM, FreeText: "ignored", VCardLabel: "Alice Smith"},
			want:  "Contact card: Alice Smith",
		},
		{
			name:  "missed call",
			event: domain.Event{Type: domain.EventTypeCall},
			want:  "1 missed call",
		},
		{
			name:  "voicemail indicator text passes through",
			event: domain.Event{Type: domain.EventTypeVoicemail, FreeText: "2 new voicemails"},
			want:  "2 new voicemails",
		},
		{
			name:  "mms waiting for manual download",
			event: domain.Event{Type: domain.EventTypeMMS, Status: domain.StatusManualNotification},
			want:  "Multimedia message waiting for download",
		},
		{
			name: "mms failed with transport details",
			event: domain.Event{
				Type:      domain.EventTypeMMS,
				Status:    domain.StatusTemporarilyFailed,
				Direction: domain.DirectionInbound,
			},
			details: "Memory full",
			want:    "Memory full",
		},
		{
			name: "mms inbound failure without details",
			event: domain.Event{
				Type:      domain.EventTypeMMS,
				Status:    domain.StatusPermanentlyFailed,
				Direction: domain.DirectionInbound,
			},
			want: "Multimedia message download failed",
		},
		{
			name: "mms outbound failure without details",
			event: domain.Event{
				Type:      domain.EventTypeMMS,
				Status:    domain.StatusPermanentlyFailed,
				Direction: domain.DirectionOutbound,
			},
			want: "Multimedia message sending failed",
		},
		{
			name: "mms subject preferred over free text",
			event: domain.Event{
				Type:     domain.EventTypeMMS,
				Subject:  "Vacation photos",
				FreeText: "see attached",
			},
			want: "Vacation photos",
		},
		{
			name: "mms attachments with text",
			event: domain.Event{
				Type:     domain.EventTypeMMS,
				FreeText: "see attached",
				Attachments: []domain.Attachment{
					{ContentType: "image/jpeg"},
					{ContentType: "image/png"},
				},
			},
			want: "2 attachments: see attached",
		},
		{
			name: "mms single attachment without text",
			event: domain.Event{
				Type:        domain.EventTypeMMS,
				Attachments: []domain.Attachment{{ContentType: "image/jpeg"}},
			},
			want: "1 attachment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventText(tt.event, tt.details))
		})
	}
}
