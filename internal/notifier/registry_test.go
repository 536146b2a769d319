package notifier

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/ports"
)

func smsEvent(remote, text, token string) domain.Event {
	return domain.Event{
		Type:      domain.EventTypeSMS,
		Account:   "ring/tel/account0",
		RemoteUID: remote,
		Direction: domain.DirectionInbound,
		FreeText:  text,
		Token:     token,
		Timestamp: time.Now(),
	}
}

func callEvent(remote string) domain.Event {
	return domain.Event{
		Type:      domain.EventTypeCall,
		Account:   "ring/tel/account0",
		RemoteUID: remote,
		Direction: domain.DirectionInbound,
		Timestamp: time.Now(),
	}
}

func TestShowCreatesGroupAndAggregate(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	require.Len(t, h.registry.Groups(), 1)

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "+3581112223344", aggregates[0].Summary)
	assert.Equal(t, "hello", aggregates[0].Body)
	assert.False(t, aggregates[0].Hidden)

	members := h.sink.byCategory("x-commtray.messaging")
	require.Len(t, members, 1)
	assert.True(t, members[0].Hidden, "message members stay hidden behind the aggregate")
	assert.NotEmpty(t, members[0].MemberData)
}

func TestShowUsesResolvedContactName(t *testing.T) {
	h := newHarness()
	h.contacts["+3581112223344"] = "Alice Smith"
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "Alice Smith", aggregates[0].Summary)
}

func TestSameSenderEventsShareAGroup(t *testing.T) {
	h := newHarness()
	// Differently formatted numbers for the same party.
	h.deliver(smsEvent("+3581112223344", "one", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(smsEvent("01112223344", "two", "t2"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(smsEvent("+3581112223344", "three", "t3"), ShowContext{ChatType: domain.ChatTypeP2P})

	require.Len(t, h.registry.Groups(), 1)
	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, 3, aggregates[0].ItemCount)
	assert.Equal(t, "3 new messages", aggregates[0].Body)
}

func TestMessagingAndVoiceGroupsAreSeparate(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})

	assert.Len(t, h.registry.Groups(), 2)
	assert.Len(t, h.sink.byCategory("x-commtray.messaging.group"), 1)
	assert.Len(t, h.sink.byCategory("x-commtray.call.missed.group"), 1)
}

func TestEditedEventUpdatesMemberInPlace(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	h.deliver(smsEvent("+3581112223344", "updated", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, 1, aggregates[0].ItemCount, "edits never create a second member")
	assert.Equal(t, "updated", aggregates[0].Body)

	members := h.sink.byCategory("x-commtray.messaging")
	require.Len(t, members, 1)
	assert.Equal(t, "updated", members[0].Body)
}

func TestEditMatchesPendingMember(t *testing.T) {
	h := newHarness()
	h.registry.Show(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	require.Equal(t, 1, h.registry.PendingCount())

	// The edit arrives before the contact lookup finished.
	h.registry.Show(smsEvent("+3581112223344", "updated", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	assert.Equal(t, 1, h.registry.PendingCount())

	h.finishResolutions()
	h.registry.Flush()

	members := h.sink.byCategory("x-commtray.messaging")
	require.Len(t, members, 1)
	assert.Equal(t, "updated", members[0].Body)
}

func TestHiddenSenderSkipsResolution(t *testing.T) {
	h := newHarness()
	h.registry.Show(smsEvent(domain.HiddenRemoteUID, "pst", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	assert.Zero(t, h.registry.PendingCount())
	assert.Empty(t, h.resolver.requests)

	h.registry.Flush()
	assert.Len(t, h.sink.byCategory("x-commtray.messaging.group"), 1)
}

func TestMultiUserChatUsesChatName(t *testing.T) {
	h := newHarness()
	event := smsEvent("alice@example.org", "hello", "t1")
	event.Type = domain.EventTypeIM
	h.registry.Show(event, ShowContext{
		ChannelTargetID: "room@conference.example.org",
		ChatType:        domain.ChatTypeRoom,
		ChatName:        "Weekend plans",
	})

	assert.Zero(t, h.registry.PendingCount(), "named chats need no contact lookup")
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "Weekend plans", aggregates[0].Summary)
}

func TestUnnamedMultiUserChatGetsFallbackName(t *testing.T) {
	h := newHarness()
	event := smsEvent("alice@example.org", "hello", "t1")
	event.Type = domain.EventTypeIM
	h.registry.Show(event, ShowContext{
		ChannelTargetID: "room@conference.example.org",
		ChatType:        domain.ChatTypeUnnamed,
	})
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "Group chat", aggregates[0].Summary)
}

func TestOnChatNameChanged(t *testing.T) {
	h := newHarness()
	event := smsEvent("alice@example.org", "hello", "t1")
	event.Type = domain.EventTypeIM
	h.registry.Show(event, ShowContext{
		ChannelTargetID: "room@conference.example.org",
		ChatType:        domain.ChatTypeRoom,
		ChatName:        "Weekend plans",
	})
	h.registry.Flush()

	target := domain.NewRecipient("ring/tel/account0", "room@conference.example.org")

	h.registry.OnChatNameChanged(target, "Vacation plans")
	h.registry.Flush()
	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "Vacation plans", aggregates[0].Summary)

	// Losing the topic falls back to the generic label.
	h.registry.OnChatNameChanged(target, "")
	h.registry.Flush()
	aggregates = h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "Group chat", aggregates[0].Summary)
}

func TestInboxObservedSuppressesMessages(t *testing.T) {
	h := newHarness()
	h.observed.inbox = true

	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	assert.Empty(t, h.registry.Groups())
	assert.Empty(t, h.sink.records)
	assert.Equal(t, []string{"sms"}, h.cues.played, "suppressed messages still chime")
}

func TestObservedConversationSuppressesMessages(t *testing.T) {
	h := newHarness()
	h.observed.conversations = []ports.Conversation{{
		Recipient: domain.NewRecipient("ring/tel/account0", "01112223344"),
		ChatType:  domain.ChatTypeP2P,
	}}

	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	assert.Empty(t, h.registry.Groups())
	assert.Equal(t, []string{"sms"}, h.cues.played)

	// Calls are never suppressed by observation.
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})
	assert.Len(t, h.sink.byCategory("x-commtray.call.missed.group"), 1)
}

func TestObservationSuppressionCueKind(t *testing.T) {
	h := newHarness()
	h.observed.inbox = true

	im := smsEvent("alice@example.org", "hello", "t1")
	im.Type = domain.EventTypeIM
	h.deliver(im, ShowContext{ChatType: domain.ChatTypeP2P})

	assert.Equal(t, []string{"chat"}, h.cues.played)
}

func TestRemoveByAccount(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	other := smsEvent("+3589998887766", "yo", "t2")
	other.Account = "ring/tel/account1"
	h.deliver(other, ShowContext{ChatType: domain.ChatTypeP2P})

	h.registry.RemoveByAccount("ring/tel/account0", nil)
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1, "only the removed account's notifications go away")
	assert.Equal(t, "+3589998887766", aggregates[0].Summary)
}

func TestRemoveByAccountPurgesPending(t *testing.T) {
	h := newHarness()
	h.registry.Show(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	require.Equal(t, 1, h.registry.PendingCount())

	h.registry.RemoveByAccount("ring/tel/account0", []domain.EventType{domain.EventTypeCall})

	assert.Zero(t, h.registry.PendingCount(), "pending members purge regardless of the type filter")
}

func TestOnInboxObservedWithAccountFilter(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	other := smsEvent("+3589998887766", "yo", "t2")
	other.Account = "ring/tel/account1"
	h.deliver(other, ShowContext{ChatType: domain.ChatTypeP2P})

	h.observed.inbox = true
	h.observed.filterAccount = "ring/tel/account0"
	h.registry.OnInboxObserved()
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, "+3589998887766", aggregates[0].Summary)
}

func TestOnInboxObservedClearsAllMessages(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})

	h.observed.inbox = true
	h.registry.OnInboxObserved()
	h.registry.Flush()

	assert.Empty(t, h.sink.byCategory("x-commtray.messaging.group"))
	assert.Len(t, h.sink.byCategory("x-commtray.call.missed.group"), 1,
		"missed calls survive inbox observation")
}

func TestOnCallHistoryObserved(t *testing.T) {
	h := newHarness()
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	h.registry.OnCallHistoryObserved(true)
	h.registry.Flush()

	assert.Empty(t, h.sink.byCategory("x-commtray.call.missed.group"))
	assert.Len(t, h.sink.byCategory("x-commtray.messaging.group"), 1)
}

func TestOnObservedConversationsChanged(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(smsEvent("+3589998887766", "yo", "t2"), ShowContext{ChatType: domain.ChatTypeP2P})

	h.registry.OnObservedConversationsChanged([]ports.Conversation{{
		Recipient: domain.NewRecipient("ring/tel/account0", "01112223344"),
		ChatType:  domain.ChatTypeP2P,
	}})
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1, "only the observed conversation clears")
	assert.Equal(t, "+3589998887766", aggregates[0].Summary)
}

func TestOnSinkClosedAggregate(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	id := h.sink.idByCategory("x-commtray.messaging.group")
	require.NotZero(t, id)

	h.registry.OnSinkClosed(id, ports.CloseDismissed)
	h.registry.Flush()

	assert.Empty(t, h.sink.records, "dismissing the aggregate clears the whole group")
}

func TestOnSinkClosedMember(t *testing.T) {
	h := newHarness()
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.deliver(callEvent("+3581112223344"), ShowContext{ChatType: domain.ChatTypeP2P})

	members := h.sink.byCategory("x-commtray.call.missed")
	require.Len(t, members, 2)
	id := h.sink.idByCategory("x-commtray.call.missed")

	h.registry.OnSinkClosed(id, ports.CloseDismissed)
	h.registry.Flush()

	aggregates := h.sink.byCategory("x-commtray.call.missed.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, 1, aggregates[0].ItemCount)
}

func TestClass0MessageIsTransient(t *testing.T) {
	h := newHarness()
	h.registry.ShowClass0(domain.Event{
		Type:      domain.EventTypeSMS,
		Account:   "ring/tel/account0",
		RemoteUID: "+3581112223344",
		FreeText:  "Emergency broadcast",
		Timestamp: time.Now(),
	})
	h.registry.Flush()

	assert.Empty(t, h.registry.Groups(), "flash messages never enter a group")
	require.Len(t, h.sink.previews, 1)
	assert.Equal(t, "Emergency broadcast", h.sink.previews[0].Summary)
	assert.Equal(t, []string{"sms"}, h.cues.played)
}

func TestSyncFromSink(t *testing.T) {
	h := newHarness()

	blob := func(token, text string) []byte {
		data, err := json.Marshal(memberData{
			Account:    "ring/tel/account0",
			RemoteUID:  "+3581112223344",
			EventType:  domain.EventTypeSMS,
			ChatType:   domain.ChatTypeP2P,
			EventToken: token,
			Text:       text,
			Hidden:     true,
		})
		require.NoError(t, err)
		return data
	}

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	memberRecord := func(token, text string) *ports.NotificationRecord {
		return &ports.NotificationRecord{
			AppName:    "Messages",
			Category:   "x-commtray.messaging",
			Summary:    "+3581112223344",
			Body:       text,
			ItemCount:  1,
			Timestamp:  ts,
			Hidden:     true,
			MemberData: blob(token, text),
		}
	}
	_, err := h.sink.Publish(memberRecord("t1", "one"))
	require.NoError(t, err)
	_, err = h.sink.Publish(memberRecord("t2", "two"))
	require.NoError(t, err)

	// A stale aggregate without membership data.
	staleID, err := h.sink.Publish(&ports.NotificationRecord{
		Category: "x-commtray.messaging.group",
		Summary:  "+3581112223344",
	})
	require.NoError(t, err)

	h.registry.SyncFromSink()
	h.finishResolutions()
	h.registry.Flush()

	assert.Contains(t, h.sink.closed, staleID, "blob-less records are discarded")

	require.Len(t, h.registry.Groups(), 1)
	assert.Len(t, h.registry.Groups()[0].Members(), 2)

	aggregates := h.sink.byCategory("x-commtray.messaging.group")
	require.Len(t, aggregates, 1)
	assert.Equal(t, 2, aggregates[0].ItemCount)
	assert.Equal(t, "2 new messages", aggregates[0].Body)

	assert.Empty(t, h.sink.previews, "restored groups never raise a preview")
}

func TestFlushCoalescesRecomputes(t *testing.T) {
	h := newHarness()
	h.registry.Show(smsEvent("+3581112223344", "one", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.registry.Show(smsEvent("+3581112223344", "two", "t2"), ShowContext{ChatType: domain.ChatTypeP2P})
	h.finishResolutions()

	before := h.sink.publishes
	h.registry.Flush()
	published := h.sink.publishes - before

	// Two member records plus exactly one aggregate recompute.
	assert.Equal(t, 3, published)
}

func TestPruneDropsEmptyGroups(t *testing.T) {
	h := newHarness()
	h.deliver(smsEvent("+3581112223344", "hello", "t1"), ShowContext{ChatType: domain.ChatTypeP2P})

	id := h.sink.idByCategory("x-commtray.messaging.group")
	h.registry.OnSinkClosed(id, ports.CloseDismissed)
	h.registry.Flush()

	require.Len(t, h.registry.Groups(), 1, "empty groups stay addressable until pruned")
	h.registry.Prune()
	assert.Empty(t, h.registry.Groups())
}
