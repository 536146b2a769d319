package notifier

import (
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/commtray/commtrayd/internal/domain"
)

// Notification phrases. Plural forms are selected through the CLDR plural
// rules so that count-bearing phrases stay correct if further languages are
// registered.
const (
	phraseNewMessages      = "%d new messages"
	phraseMissedCalls      = "%d missed calls"
	phraseAttachments      = "%d attachments"
	phraseAttachmentsText  = "%d attachments: %s"
	phraseContactCard      = "Contact card: %s"
	phraseGroupChat        = "Group chat"
	phraseMMSManual        = "Multimedia message waiting for download"
	phraseMMSRecvFailed    = "Multimedia message download failed"
	phraseMMSSendFailed    = "Multimedia message sending failed"
	phraseVoicemailWaiting = "%d new voicemails"
)

// VoicemailPrompt is the body of the voicemail-waiting notification.
const VoicemailPrompt = "Call your voicemail box"

var printer *message.Printer

func init() {
	for phrase, forms := range map[string][2]string{
		phraseNewMessages:      {"%d new message", "%d new messages"},
		phraseMissedCalls:      {"%d missed call", "%d missed calls"},
		phraseAttachments:      {"%d attachment", "%d attachments"},
		phraseAttachmentsText:  {"%d attachment: %s", "%d attachments: %s"},
		phraseVoicemailWaiting: {"%d new voicemail", "%d new voicemails"},
	} {
		if err := message.Set(language.English, phrase,
			plural.Selectf(1, "%d", "one", forms[0], "other", forms[1])); err != nil {
			panic(err)
		}
	}
	printer = message.NewPrinter(language.English)
}

// NewMessagesText returns the count-bearing aggregate messaging phrase.
func NewMessagesText(count int) string {
	return printer.Sprintf(phraseNewMessages, count)
}

// MissedCallsText returns the count-bearing missed calls phrase. The plural
// form is used even for a single call; the per-member text is never shown
// for the voice collection.
func MissedCallsText(count int) string {
	return printer.Sprintf(phraseMissedCalls, count)
}

// VoicemailWaitingText returns the voicemail-waiting summary phrase.
func VoicemailWaitingText(count int) string {
	return printer.Sprintf(phraseVoicemailWaiting, count)
}

// EventText computes the display text for a communication event. The
// details argument carries transport-supplied failure information for MMS.
func EventText(event domain.Event, details string) string {
	switch event.Type {
	case domain.EventTypeIM, domain.EventTypeSMS:
		if event.VCardLabel != "" {
			return printer.Sprintf(phraseContactCard, event.VCardLabel)
		}
		return event.FreeText

	case domain.EventTypeMMS:
		return mmsText(event, details)

	case domain.EventTypeCall:
		return MissedCallsText(1)

	case domain.EventTypeVoicemail, domain.EventTypeVoicemailSMS:
		// The upstream source already encodes the voicemail count in the
		// event text ("3 new voicemails").
		return event.FreeText
	}
	return ""
}

func mmsText(event domain.Event, details string) string {
	if event.Status == domain.StatusManualNotification {
		return phraseMMSManual
	}
	if event.Status.Failed() {
		if trimmed := strings.TrimSpace(details); trimmed != "" {
			return trimmed
		}
		if event.Direction == domain.DirectionInbound {
			return phraseMMSRecvFailed
		}
		return phraseMMSSendFailed
	}

	text := event.Subject
	if text == "" {
		text = event.FreeText
	}
	if count := event.AttachmentCount(); count > 0 {
		if text != "" {
			return printer.Sprintf(phraseAttachmentsText, count, text)
		}
		return printer.Sprintf(phraseAttachments, count)
	}
	return text
}

// joinNames joins contact display names for the aggregate summary.
func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
