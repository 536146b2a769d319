package notifier

import (
	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/metrics"
	"github.com/commtray/commtrayd/internal/ports"
)

// Audio cue identifiers handed to the cue player.
const (
	cueSMS  = "sms"
	cueChat = "chat"
)

// groupKey identifies one notification group. The remote component is the
// recipient's minimized form so that differently formatted numbers for the
// same contact land in the same group.
type groupKey struct {
	collection domain.Collection
	account    string
	remote     string
}

func keyFor(collection domain.Collection, recipient domain.Recipient) groupKey {
	return groupKey{
		collection: collection,
		account:    recipient.Account,
		remote:     recipient.MinimizedRemote(),
	}
}

// ShowContext carries the conversation context an event arrived with.
type ShowContext struct {
	// ChannelTargetID is the channel identifier for multi-user chats.
	ChannelTargetID string
	ChatType        domain.ChatType
	// Details carries transport-supplied failure information for MMS.
	Details string
	// ChatName is the topic of the conversation, when one is known.
	ChatName string
}

// Registry owns the mapping from group keys to notification groups, the
// pending-resolution list, and the coalesced recompute schedule. It is
// driven exclusively from the dispatch loop and takes no locks.
type Registry struct {
	sink     ports.NotificationSink
	resolver ports.ContactResolver
	cues     ports.CuePlayer
	observed ports.ObservedState
	log      logging.Logger
	metrics  *metrics.Metrics

	groups  map[groupKey]*Group
	pending []*Member

	dirty      map[*Group]struct{}
	dirtyOrder []*Group
}

// NewRegistry creates the group registry.
func NewRegistry(sink ports.NotificationSink, resolver ports.ContactResolver, cues ports.CuePlayer, observed ports.ObservedState, m *metrics.Metrics, log logging.Logger) *Registry {
	return &Registry{
		sink:     sink,
		resolver: resolver,
		cues:     cues,
		observed: observed,
		log:      log.With("component", "registry"),
		metrics:  m,
		groups:   make(map[groupKey]*Group),
		dirty:    make(map[*Group]struct{}),
	}
}

// Show routes an incoming communication event. Message events whose
// conversation (or the whole inbox) is currently on screen only trigger an
// audio cue. Otherwise the event either updates an existing member matched
// by token or becomes a new member notification routed through contact
// resolution.
func (r *Registry) Show(event domain.Event, ctx ShowContext) {
	r.metrics.EventsReceived.WithLabelValues(domain.CollectionFor(event.Type).String()).Inc()

	if event.Type.IsMessage() {
		if r.observed.InboxObserved() || r.isObservedByUI(event, ctx) {
			r.playMessageCue(event.Type)
			r.metrics.EventsSuppressed.Inc()
			return
		}
	}

	text := EventText(event, ctx.Details)
	if event.Token != "" && r.updateEditedEvent(event, text) {
		r.metrics.EditsMatched.Inc()
		return
	}

	member := NewMember(event.Type, event.Account, event.RemoteUID, ctx.ChannelTargetID, ctx.ChatType)
	member.SetText(text)
	member.SetEventToken(event.Token)
	member.SetTimestamp(event.Timestamp)

	if ctx.ChatType.IsMultiUser() {
		chatName := ctx.ChatName
		if chatName == "" {
			chatName = phraseGroupChat
		}
		member.SetChatName(chatName)
	}

	r.Resolve(member)
}

// ShowClass0 handles a flash SMS: the arrival cue plays and the message
// text is raised as a transient preview. Flash messages never enter a
// group and leave no persistent notification behind.
func (r *Registry) ShowClass0(event domain.Event) {
	r.playMessageCue(domain.EventTypeSMS)
	err := r.sink.PublishPreview(&ports.NotificationRecord{
		AppName:   domain.CollectionMessaging.GroupName(),
		Category:  domain.CollectionMessaging.MemberCategory() + ".preview",
		Summary:   event.FreeText,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		r.log.Warn("failed to raise flash message preview", "error", err)
	}
}

// Resolve attaches a member to its group immediately when its identity is
// already usable: a resolved contact, the hidden-sender sentinel, or a
// group chat carrying its own name. Everything else waits on the
// pending-resolution list for the contact lookup batch to finish.
func (r *Registry) Resolve(m *Member) {
	if m.Recipient().IsHidden() || m.ChatName() != "" || m.resolved {
		r.attach(m)
		return
	}

	r.log.Debug("resolving contact", "account", m.Account(), "remote", m.RemoteUID())
	r.pending = append(r.pending, m)
	r.metrics.PendingResolutions.Set(float64(len(r.pending)))
	r.resolver.Request(m.Recipient())
}

// OnResolutionFinished applies a completed lookup batch to every pending
// member and attaches them all. Members the batch could not resolve keep
// their number as display name.
func (r *Registry) OnResolutionFinished(resolutions []ports.Resolution) {
	for _, m := range r.pending {
		for _, res := range resolutions {
			if res.Recipient.Matches(m.Recipient()) {
				m.ApplyResolution(res)
				break
			}
		}
		r.attach(m)
	}
	r.pending = nil
	r.metrics.PendingResolutions.Set(0)
}

// OnContactChanged refreshes the display data of every member whose
// recipient matches a changed contact. Group membership never changes.
func (r *Registry) OnContactChanged(resolutions []ports.Resolution) {
	r.applyContactUpdate(resolutions)
}

// OnContactInfoChanged behaves like OnContactChanged for contact detail
// updates.
func (r *Registry) OnContactInfoChanged(resolutions []ports.Resolution) {
	r.applyContactUpdate(resolutions)
}

func (r *Registry) applyContactUpdate(resolutions []ports.Resolution) {
	for _, group := range r.groups {
		for _, m := range group.Members() {
			for _, res := range resolutions {
				if res.Recipient.Matches(m.Recipient()) {
					m.ApplyResolution(res)
					break
				}
			}
		}
	}
}

// RemoveByAccount removes every member of the account whose event type is
// in types; an empty filter removes all of the account's members. Pending
// resolutions for the account are purged regardless of type.
func (r *Registry) RemoveByAccount(account string, types []domain.EventType) {
	for _, group := range r.groups {
		if group.Account() != account {
			continue
		}
		for _, m := range group.Members() {
			if len(types) == 0 || containsType(types, m.EventType()) {
				r.removeMember(group, m)
			}
		}
	}

	kept := r.pending[:0]
	for _, m := range r.pending {
		if m.Account() == account {
			continue
		}
		kept = append(kept, m)
	}
	r.pending = kept
	r.metrics.PendingResolutions.Set(float64(len(r.pending)))
}

// RemoveByConversation removes every messaging member of the given chat
// type whose conversation identity matches the recipient. Used when the UI
// begins observing that conversation.
func (r *Registry) RemoveByConversation(recipient domain.Recipient, chatType domain.ChatType) {
	for _, group := range r.groups {
		for _, m := range group.Members() {
			if m.Collection() != domain.CollectionMessaging || m.ChatType() != chatType {
				continue
			}
			if recipient.Matches(m.TargetRecipient()) {
				r.removeMember(group, m)
			}
		}
	}
}

// RemoveByEventTypes removes every member whose event type is in the set,
// across all groups.
func (r *Registry) RemoveByEventTypes(types []domain.EventType) {
	for _, group := range r.groups {
		for _, m := range group.Members() {
			if containsType(types, m.EventType()) {
				r.removeMember(group, m)
			}
		}
	}
}

// OnObservedConversationsChanged clears the notifications of conversations
// the UI started observing.
func (r *Registry) OnObservedConversationsChanged(conversations []ports.Conversation) {
	for _, conv := range conversations {
		r.RemoveByConversation(conv.Recipient, conv.ChatType)
	}
}

// OnInboxObserved reacts to the inbox view becoming the active observer:
// its backlog stops producing banners. With an account filter in place only
// that account's message notifications go away.
func (r *Registry) OnInboxObserved() {
	if !r.observed.InboxObserved() {
		return
	}
	if filter := r.observed.InboxFilterAccount(); filter != "" {
		r.log.Debug("inbox observed, filtered", "account", filter)
		r.RemoveByAccount(filter, domain.MessageEventTypes())
		return
	}
	r.RemoveByEventTypes(domain.MessageEventTypes())
}

// OnCallHistoryObserved clears missed-call notifications when the call
// history view becomes the active observer.
func (r *Registry) OnCallHistoryObserved(observed bool) {
	if observed {
		r.RemoveByEventTypes([]domain.EventType{domain.EventTypeCall})
	}
}

// OnChatNameChanged updates the chat name of every multi-user chat member
// matching the conversation recipient.
func (r *Registry) OnChatNameChanged(recipient domain.Recipient, chatName string) {
	for _, group := range r.groups {
		if group.Account() != recipient.Account {
			continue
		}
		for _, m := range group.Members() {
			if m.ChatName() == "" || !recipient.Matches(m.TargetRecipient()) {
				continue
			}
			newName := ""
			if chatName == "" && m.ChatName() != phraseGroupChat {
				newName = phraseGroupChat
			} else if chatName != "" && chatName != m.ChatName() {
				newName = chatName
			}
			if newName != "" {
				m.SetChatName(newName)
			}
		}
	}
}

// OnSinkClosed routes a platform-side close to its owner: a group whose
// aggregate carries the id tears down; a member with the id is removed from
// its group. Unknown ids are ignored.
func (r *Registry) OnSinkClosed(id uint32, reason ports.CloseReason) {
	if id == 0 {
		return
	}
	for _, group := range r.groups {
		if group.AggregateHandle() == id {
			group.HandleClosed(reason)
			return
		}
		for _, m := range group.Members() {
			if m.handle == id {
				r.removeMember(group, m)
				return
			}
		}
	}
}

// SyncFromSink reconstructs the in-memory groups from the still-open
// records the sink retained across a restart. Records without membership
// data are stale aggregates and are discarded; they get recreated on the
// first recompute if still needed.
func (r *Registry) SyncFromSink() {
	records, err := r.sink.OpenRecords()
	if err != nil {
		r.log.Error("failed to read back stored notifications", "error", err)
		return
	}

	restored := 0
	for _, rec := range records {
		m, err := RestoreMember(rec)
		if err != nil {
			r.log.Warn("discarding stale notification record", "id", rec.ID, "category", rec.Category, "error", err)
			_ = r.sink.Close(rec.ID)
			continue
		}
		restored++
		r.Resolve(m)
	}
	r.log.Info("restored notification state", "records", len(records), "members", restored)
}

// PendingCount returns the number of members awaiting contact resolution.
func (r *Registry) PendingCount() int {
	return len(r.pending)
}

// Flush runs the coalesced aggregate recomputes scheduled during the
// current dispatch turn. The dispatcher calls it once after every delivered
// signal.
func (r *Registry) Flush() {
	for len(r.dirtyOrder) > 0 {
		batch := r.dirtyOrder
		r.dirtyOrder = nil
		r.dirty = make(map[*Group]struct{})
		for _, group := range batch {
			group.update()
		}
	}
}

// Prune drops empty groups with no published aggregate from the registry
// map. Empty groups stay addressable until pruned.
func (r *Registry) Prune() {
	for key, group := range r.groups {
		if len(group.members) == 0 && group.AggregateHandle() == 0 {
			delete(r.groups, key)
		}
	}
}

// Groups returns a snapshot of the registered groups.
func (r *Registry) Groups() []*Group {
	out := make([]*Group, 0, len(r.groups))
	for _, group := range r.groups {
		out = append(out, group)
	}
	return out
}

// scheduleUpdate implements groupHost; it marks a group for one recompute
// at the end of the current dispatch turn.
func (r *Registry) scheduleUpdate(g *Group) {
	if _, ok := r.dirty[g]; ok {
		return
	}
	r.dirty[g] = struct{}{}
	r.dirtyOrder = append(r.dirtyOrder, g)
}

// attach adds a member to its target group, creating the group on first
// use of the key.
func (r *Registry) attach(m *Member) {
	key := keyFor(m.Collection(), m.Recipient())
	group, ok := r.groups[key]
	if !ok {
		group = NewGroup(key.collection, m.Account(), m.RemoteUID(), r.sink, r, r.log)
		r.groups[key] = group
	}
	group.Add(m)
}

func (r *Registry) removeMember(group *Group, m *Member) {
	if group.Remove(m) {
		r.metrics.MembersRemoved.Inc()
	}
}

// updateEditedEvent matches the event token against pending members first,
// then against the event's target group, updating the text in place on a
// match so edits never create duplicate members.
func (r *Registry) updateEditedEvent(event domain.Event, text string) bool {
	for _, m := range r.pending {
		if m.EventToken() == event.Token {
			m.SetText(text)
			return true
		}
	}

	key := keyFor(domain.CollectionFor(event.Type), event.Recipient())
	group, ok := r.groups[key]
	if !ok {
		return false
	}
	for _, m := range group.Members() {
		if m.EventToken() == event.Token {
			m.SetText(text)
			return true
		}
	}
	return false
}

// isObservedByUI reports whether the event's conversation is currently on
// screen.
func (r *Registry) isObservedByUI(event domain.Event, ctx ShowContext) bool {
	if !event.Type.IsMessage() {
		return false
	}

	remoteMatch := event.RemoteUID
	if ctx.ChatType != domain.ChatTypeP2P {
		remoteMatch = ctx.ChannelTargetID
	}
	messageRecipient := domain.NewRecipient(event.Account, remoteMatch)

	for _, conv := range r.observed.ObservedConversations() {
		if conv.Recipient.Matches(messageRecipient) && conv.ChatType == ctx.ChatType {
			return true
		}
	}
	return false
}

// playMessageCue plays the arrival tone for a message suppressed by an
// observed conversation.
func (r *Registry) playMessageCue(eventType domain.EventType) {
	cue := cueChat
	if eventType == domain.EventTypeSMS || eventType == domain.EventTypeMMS {
		cue = cueSMS
	}
	r.cues.Play(cue, map[string]string{"play.mode": "foreground"})
	r.metrics.CuesPlayed.Inc()
}

func containsType(types []domain.EventType, t domain.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
