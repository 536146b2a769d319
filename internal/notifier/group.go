package notifier

import (
	"time"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/ports"
)

// groupHost is the registry-side contract a group uses to defer its
// aggregate recompute. Scheduling is idempotent; several mutations within
// one dispatch turn produce exactly one recompute.
type groupHost interface {
	scheduleUpdate(*Group)
}

// Group owns the ordered member notifications of one conversation or
// category and the single aggregate notification summarizing them. The
// aggregate exists exactly while the member list is non-empty.
type Group struct {
	collection domain.Collection
	account    string
	remoteUID  string

	members []*Member
	handle  uint32

	sink ports.NotificationSink
	host groupHost
	log  logging.Logger
}

// NewGroup creates an empty notification group for the given key.
func NewGroup(collection domain.Collection, account, remoteUID string, sink ports.NotificationSink, host groupHost, log logging.Logger) *Group {
	return &Group{
		collection: collection,
		account:    account,
		remoteUID:  remoteUID,
		sink:       sink,
		host:       host,
		log:        log.With("collection", collection.String(), "account", account, "remote", remoteUID),
	}
}

// Collection returns the group's notification collection.
func (g *Group) Collection() domain.Collection { return g.collection }

// Account returns the group's local account identifier.
func (g *Group) Account() string { return g.account }

// RemoteUID returns the group's remote party identifier.
func (g *Group) RemoteUID() string { return g.remoteUID }

// AggregateHandle returns the published aggregate's id, zero when the
// aggregate is not published.
func (g *Group) AggregateHandle() uint32 { return g.handle }

// Members returns a snapshot of the member list in arrival order. Callers
// may remove members while iterating the snapshot.
func (g *Group) Members() []*Member {
	out := make([]*Member, len(g.members))
	copy(out, g.members)
	return out
}

// Add attaches a member to the group. Adding a member already present is a
// no-op. For the voice and voicemail collections the member-visibility rule
// is applied: a sole member is shown directly, and the arrival of a second
// member retroactively hides the first.
func (g *Group) Add(m *Member) {
	for _, existing := range g.members {
		if existing == m {
			return
		}
	}

	m.onChanged = func(*Member) { g.host.scheduleUpdate(g) }
	g.members = append(g.members, m)

	if g.collection == domain.CollectionVoice || g.collection == domain.CollectionVoicemail {
		if len(g.members) > 1 {
			m.SetHidden(true)
			g.members[0].SetHidden(true)
		} else {
			m.SetHidden(false)
		}
	}

	g.host.scheduleUpdate(g)
}

// Remove detaches a member and releases its platform record. It reports
// whether the member was present; callers must tolerate false and drop
// their own reference either way.
func (g *Group) Remove(m *Member) bool {
	for i, existing := range g.members {
		if existing != m {
			continue
		}
		g.members = append(g.members[:i], g.members[i+1:]...)
		m.onChanged = nil
		m.release(g.sink)

		if g.collection == domain.CollectionVoice || g.collection == domain.CollectionVoicemail {
			if len(g.members) == 1 {
				g.members[0].SetHidden(false)
			}
		}

		g.host.scheduleUpdate(g)
		return true
	}
	return false
}

// HandleClosed reacts to the platform closing the aggregate (user swipe):
// every member is removed and the aggregate handle cleared. The group
// itself stays registered.
func (g *Group) HandleClosed(reason ports.CloseReason) {
	g.log.Debug("aggregate closed by platform", "reason", string(reason))
	g.teardown()
}

// update recomputes and publishes the aggregate notification. It runs
// coalesced at the end of the dispatch turn that mutated the group.
func (g *Group) update() {
	if len(g.members) == 0 {
		// Races between platform closed signals and synchronous removal
		// can leave the group empty by the time the deferred update runs.
		g.teardown()
		return
	}

	body := g.groupText()

	rec := &ports.NotificationRecord{
		ReplacesID: g.handle,
		AppName:    g.collection.GroupName(),
		Category:   g.collection.GroupCategory(),
		Summary:    joinNames(g.contactNames()),
		ItemCount:  len(g.members),
	}
	if g.collection == domain.CollectionMessaging {
		// For missed calls and voicemail the body would duplicate the
		// group header, so only messaging aggregates carry one.
		rec.Body = body
	}

	// The aggregate and a directly visible sole member must never both
	// render.
	membersHidden := g.members[0].Hidden()
	rec.Hidden = !membersHidden

	grouped := g.countConversations() > 1
	rec.Actions = remoteActions(g.members[0], grouped)

	allRestored := true
	var timestamp time.Time
	for _, m := range g.members {
		allRestored = allRestored && m.Restored()
		if m.Pending() {
			// Publishing also assigns a timestamp to members that never
			// carried one.
			if err := m.publish(g.sink); err != nil {
				g.log.Warn("failed to publish member notification", "token", m.EventToken(), "error", err)
			}
		}
		if ts := m.Timestamp(); ts.After(timestamp) {
			timestamp = ts
		}
	}
	rec.Timestamp = timestamp

	// Raise a preview banner unless the whole group was just restored from
	// storage. Missed calls never preview; the incoming call UI was just on
	// screen.
	if g.collection != domain.CollectionVoice && membersHidden && !allRestored {
		preview := &ports.NotificationRecord{
			AppName:  rec.AppName,
			Category: rec.Category + ".preview",
			Summary:  rec.Summary,
			Body:     body,
			Actions:  rec.Actions,
		}
		if err := g.sink.PublishPreview(preview); err != nil {
			g.log.Warn("failed to publish preview", "error", err)
		}
	}

	id, err := g.sink.Publish(rec)
	if err != nil {
		g.log.Warn("failed to publish aggregate", "error", err)
		return
	}
	g.handle = id
	g.log.Debug("published aggregate", "id", id, "summary", rec.Summary, "count", rec.ItemCount, "hidden", rec.Hidden)
}

// teardown closes the aggregate and removes every member.
func (g *Group) teardown() {
	if g.handle != 0 {
		if err := g.sink.Close(g.handle); err != nil {
			g.log.Warn("failed to close aggregate", "id", g.handle, "error", err)
		}
		g.handle = 0
	}
	for len(g.members) > 0 {
		g.Remove(g.members[0])
	}
}

// groupText computes the aggregate display body.
func (g *Group) groupText() string {
	count := len(g.members)
	if count == 0 {
		return ""
	}
	switch g.collection {
	case domain.CollectionMessaging:
		if count > 1 {
			return NewMessagesText(count)
		}
		return g.members[0].Text()
	case domain.CollectionVoice:
		return MissedCallsText(count)
	case domain.CollectionVoicemail:
		// The member text already encodes the voicemail count.
		return g.members[0].Text()
	}
	return ""
}

// contactNames returns the distinct member display names ordered most
// recent first. Members with matching recipients collapse to one entry
// keeping the longer name, which prefers a resolved contact name over a
// bare phone number for the same party.
func (g *Group) contactNames() []string {
	type entry struct {
		recipient domain.Recipient
		name      string
	}
	var details []entry

	for _, m := range g.members {
		recipient := m.Recipient()
		name := m.Name()
		found := false
		for i := range details {
			if details[i].recipient.Matches(recipient) {
				if len(name) > len(details[i].name) {
					details[i].name = name
				}
				found = true
				break
			}
		}
		if !found {
			details = append(details, entry{recipient: recipient, name: name})
		}
	}

	names := make([]string, 0, len(details))
	for i := len(details) - 1; i >= 0; i-- {
		names = append(names, details[i].name)
	}
	return names
}

// countConversations counts the distinct (account, remote party) pairs
// among members.
func (g *Group) countConversations() int {
	seen := make(map[[2]string]struct{})
	for _, m := range g.members {
		seen[[2]string{m.Account(), m.RemoteUID()}] = struct{}{}
	}
	return len(seen)
}
