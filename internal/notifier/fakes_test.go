package notifier

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/metrics"
	"github.com/commtray/commtrayd/internal/ports"
)

// fakeSink is an in-memory ports.NotificationSink that keeps open records
// keyed by id and logs every publish.
type fakeSink struct {
	nextID    uint32
	records   map[uint32]ports.NotificationRecord
	previews  []ports.NotificationRecord
	closed    []uint32
	publishes int
}

func newFakeSink() *fakeSink {
	return &fakeSink{records: make(map[uint32]ports.NotificationRecord)}
}

func (s *fakeSink) Publish(rec *ports.NotificationRecord) (uint32, error) {
	s.publishes++
	id := rec.ReplacesID
	if _, ok := s.records[id]; !ok {
		s.nextID++
		id = s.nextID
	}
	s.records[id] = *rec
	return id, nil
}

func (s *fakeSink) Close(id uint32) error {
	if _, ok := s.records[id]; ok {
		delete(s.records, id)
		s.closed = append(s.closed, id)
	}
	return nil
}

func (s *fakeSink) PublishPreview(rec *ports.NotificationRecord) error {
	s.previews = append(s.previews, *rec)
	return nil
}

func (s *fakeSink) OpenRecords() ([]ports.StoredRecord, error) {
	ids := make([]uint32, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]ports.StoredRecord, 0, len(ids))
	for _, id := range ids {
		rec := s.records[id]
		records = append(records, ports.StoredRecord{
			ID:         id,
			Category:   rec.Category,
			Summary:    rec.Summary,
			Body:       rec.Body,
			ItemCount:  rec.ItemCount,
			Timestamp:  rec.Timestamp,
			Hidden:     rec.Hidden,
			MemberData: rec.MemberData,
		})
	}
	return records, nil
}

// byCategory returns the open records with the given category, id order.
func (s *fakeSink) byCategory(category string) []ports.NotificationRecord {
	ids := make([]uint32, 0, len(s.records))
	for id, rec := range s.records {
		if rec.Category == category {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]ports.NotificationRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

func (s *fakeSink) idByCategory(category string) uint32 {
	for id, rec := range s.records {
		if rec.Category == category {
			return id
		}
	}
	return 0
}

// fakeResolver records lookup requests; tests complete them explicitly.
type fakeResolver struct {
	requests []domain.Recipient
}

func (r *fakeResolver) Request(recipient domain.Recipient) {
	r.requests = append(r.requests, recipient)
}

type fakeCues struct {
	played []string
}

func (c *fakeCues) Play(event string, properties map[string]string) {
	c.played = append(c.played, event)
}

type fakeObserved struct {
	inbox         bool
	filterAccount string
	conversations []ports.Conversation
}

func (o *fakeObserved) InboxObserved() bool        { return o.inbox }
func (o *fakeObserved) InboxFilterAccount() string { return o.filterAccount }
func (o *fakeObserved) ObservedConversations() []ports.Conversation {
	return o.conversations
}

// harness wires a registry against the in-memory fakes and emulates the
// dispatch turn: deliver runs a signal, completes any contact lookups it
// queued, and flushes the coalesced recomputes.
type harness struct {
	registry *Registry
	sink     *fakeSink
	resolver *fakeResolver
	cues     *fakeCues
	observed *fakeObserved

	// contacts maps a remote uid to its resolved display name.
	contacts map[string]string
}

func newHarness() *harness {
	h := &harness{
		sink:     newFakeSink(),
		resolver: &fakeResolver{},
		cues:     &fakeCues{},
		observed: &fakeObserved{},
		contacts: make(map[string]string),
	}
	h.registry = NewRegistry(h.sink, h.resolver, h.cues, h.observed,
		metrics.New(prometheus.NewRegistry()), logging.Noop())
	return h
}

func (h *harness) finishResolutions() {
	if len(h.resolver.requests) == 0 {
		if h.registry.PendingCount() > 0 {
			h.registry.OnResolutionFinished(nil)
		}
		return
	}
	batch := make([]ports.Resolution, 0, len(h.resolver.requests))
	for _, recipient := range h.resolver.requests {
		name, ok := h.contacts[recipient.Remote]
		batch = append(batch, ports.Resolution{Recipient: recipient, Name: name, Resolved: ok})
	}
	h.resolver.requests = nil
	h.registry.OnResolutionFinished(batch)
}

func (h *harness) deliver(event domain.Event, ctx ShowContext) {
	h.registry.Show(event, ctx)
	h.finishResolutions()
	h.registry.Flush()
}
