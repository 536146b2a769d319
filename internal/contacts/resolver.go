package contacts

import (
	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/ports"
)

// Lookup answers one contact query. *Directory satisfies it.
type Lookup interface {
	Lookup(recipient domain.Recipient) (string, bool, error)
}

// Resolver queues recipients for contact lookup and reports one completed
// batch per dispatch turn. Requests made within a single turn coalesce:
// the lookup task is posted once and drains the whole queue.
type Resolver struct {
	lookup   Lookup
	log      logging.Logger
	post     func(func())
	finished func([]ports.Resolution)

	queue     []domain.Recipient
	scheduled bool
}

// NewResolver creates a resolver. post defers a task onto the dispatch
// loop; finished receives each completed batch there.
func NewResolver(lookup Lookup, post func(func()), finished func([]ports.Resolution), log logging.Logger) *Resolver {
	return &Resolver{
		lookup:   lookup,
		log:      log.With("component", "resolver"),
		post:     post,
		finished: finished,
	}
}

// Request queues a recipient for resolution.
func (r *Resolver) Request(recipient domain.Recipient) {
	for _, queued := range r.queue {
		if queued.Matches(recipient) {
			return
		}
	}
	r.queue = append(r.queue, recipient)

	if r.scheduled {
		return
	}
	r.scheduled = true
	r.post(r.resolveQueued)
}

// resolveQueued drains the queue, looks every recipient up, and delivers
// the batch. Lookup failures leave the recipient unresolved; the member
// keeps its number as display name.
func (r *Resolver) resolveQueued() {
	batch := r.queue
	r.queue = nil
	r.scheduled = false

	resolutions := make([]ports.Resolution, 0, len(batch))
	for _, recipient := range batch {
		name, ok, err := r.lookup.Lookup(recipient)
		if err != nil {
			r.log.Warn("contact lookup failed", "account", recipient.Account, "remote", recipient.Remote, "error", err)
		}
		resolutions = append(resolutions, ports.Resolution{
			Recipient: recipient,
			Name:      name,
			Resolved:  ok,
		})
	}
	r.finished(resolutions)
}
