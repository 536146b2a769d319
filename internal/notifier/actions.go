package notifier

import (
	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/ports"
)

// Remote endpoints invoked by notification actions. The daemon only carries
// these as action descriptors; invocation is the platform's business.
const (
	messagingService        = "org.commtray.Messages"
	messagingPath           = "/"
	messagingInterface      = "org.commtray.Messages"
	showInboxMethod         = "showInbox"
	startConversationMethod = "startConversation"

	callHistoryService   = "org.commtray.Calls"
	callHistoryPath      = "/org/commtray/Calls"
	callHistoryInterface = "org.commtray.Calls"
	callHistoryMethod    = "showCallHistory"
	callHistoryParameter = "missed"

	voicemailPath      = "/org/commtray/Voicemail"
	voicemailInterface = "org.commtray.Voicemail"
	voicemailMethod    = "showVoicemail"

	dialerService   = "org.commtray.Dialer"
	dialerPath      = "/org/commtray/Dialer"
	dialerInterface = "org.commtray.Dialer"
	dialerMethod    = "dial"
)

func remoteAction(name, displayName, service, path, iface, method string, args ...string) ports.RemoteAction {
	return ports.RemoteAction{
		Name:        name,
		DisplayName: displayName,
		Service:     service,
		Path:        path,
		Interface:   iface,
		Method:      method,
		Arguments:   args,
	}
}

// remoteActions chooses the actions for a notification derived from the
// given lead member. The grouped flag is set when the owning group spans
// more than one conversation, in which case tapping a messaging
// notification opens the inbox rather than one conversation.
func remoteActions(lead *Member, grouped bool) []ports.RemoteAction {
	switch lead.Collection() {
	case domain.CollectionMessaging:
		var def ports.RemoteAction
		if lead.EventType() != domain.EventTypeVoicemailSMS && grouped {
			def = remoteAction("default", "Show messages",
				messagingService, messagingPath, messagingInterface, showInboxMethod)
		} else {
			def = remoteAction("default", "Reply",
				messagingService, messagingPath, messagingInterface, startConversationMethod,
				lead.Account(), lead.TargetRecipient().Remote, lead.ChatType().String())
		}
		return []ports.RemoteAction{
			def,
			remoteAction("app", "", messagingService, messagingPath, messagingInterface, showInboxMethod),
		}

	case domain.CollectionVoice:
		return []ports.RemoteAction{
			remoteAction("default", "Show call history",
				callHistoryService, callHistoryPath, callHistoryInterface, callHistoryMethod, callHistoryParameter),
			remoteAction("app", "",
				callHistoryService, callHistoryPath, callHistoryInterface, callHistoryMethod, callHistoryParameter),
		}

	case domain.CollectionVoicemail:
		return []ports.RemoteAction{
			remoteAction("default", "Show voicemail",
				callHistoryService, voicemailPath, voicemailInterface, voicemailMethod),
			remoteAction("app", "",
				callHistoryService, voicemailPath, voicemailInterface, voicemailMethod),
		}
	}
	return nil
}

// VoicemailWaitingActions returns the actions for the standalone
// voicemail-waiting notification: call the mailbox directly when its number
// is known, otherwise open the call history.
func VoicemailWaitingActions(mailboxNumber string) []ports.RemoteAction {
	if mailboxNumber != "" {
		arg := "tel://" + mailboxNumber
		return []ports.RemoteAction{
			remoteAction("default", "Call voicemail", dialerService, dialerPath, dialerInterface, dialerMethod, arg),
			remoteAction("app", "", dialerService, dialerPath, dialerInterface, dialerMethod, arg),
		}
	}
	return []ports.RemoteAction{
		remoteAction("default", "Show call history",
			callHistoryService, callHistoryPath, callHistoryInterface, callHistoryMethod, callHistoryParameter),
		remoteAction("app", "",
			callHistoryService, callHistoryPath, callHistoryInterface, callHistoryMethod, callHistoryParameter),
	}
}
