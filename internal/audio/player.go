// Package audio plays named feedback cues (message arrival tones). The
// player mirrors the platform feedback service contract: connecting is
// idempotent, playback is fire-and-forget, and completion or failure
// arrives asynchronously through the dispatch loop.
package audio

import (
	"github.com/commtray/commtrayd/internal/logging"
)

// Backend connects to the feedback service and starts cue playback.
type Backend interface {
	// Connect establishes the service connection. Idempotent.
	Connect() error
	// Play starts the named cue and returns its playback id.
	Play(event string, properties map[string]string) (uint32, error)
}

// Player implements ports.CuePlayer over a Backend, keeping at most one
// cue outstanding so rapid event bursts do not stack tones.
type Player struct {
	backend     Backend
	log         logging.Logger
	connected   bool
	outstanding uint32
}

// NewPlayer creates a cue player.
func NewPlayer(backend Backend, log logging.Logger) *Player {
	return &Player{backend: backend, log: log.With("component", "audio")}
}

// Play starts the named cue. Connection and playback failures are logged
// and otherwise ignored; a missing tone never blocks notification flow.
func (p *Player) Play(event string, properties map[string]string) {
	if !p.connected {
		if err := p.backend.Connect(); err != nil {
			p.log.Warn("failed to connect feedback service", "error", err)
			return
		}
		p.connected = true
	}

	if p.outstanding != 0 {
		return
	}

	id, err := p.backend.Play(event, properties)
	if err != nil {
		p.log.Warn("failed to play cue", "event", event, "error", err)
		return
	}
	p.log.Debug("playing cue", "event", event, "id", id)
	p.outstanding = id
}

// OnEventFinished handles cue completion or failure.
func (p *Player) OnEventFinished(id uint32) {
	if id == p.outstanding {
		p.outstanding = 0
	}
}

// nopBackend pretends to play cues, for hosts without a feedback service.
type nopBackend struct {
	next uint32
}

func (b *nopBackend) Connect() error { return nil }

func (b *nopBackend) Play(string, map[string]string) (uint32, error) {
	b.next++
	return b.next, nil
}

// NewNopBackend returns a backend that accepts every cue silently.
func NewNopBackend() Backend { return &nopBackend{} }
