// Package telephony tracks per-modem voicemail-waiting indicators and
// keeps the single standalone voicemail-waiting notification in sync with
// them. This notification lives outside the group registry: it reflects
// mailbox state, not individual events, and survives as long as the
// indicator is raised.
package telephony

import (
	"time"

	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/notifier"
	"github.com/commtray/commtrayd/internal/ports"
)

// VoicemailWaitingCategory is the platform category of the standalone
// voicemail-waiting notification.
const VoicemailWaitingCategory = "x-commtray.voicemail.waiting"

// Watcher consumes message-waiting changes delivered by the dispatch loop.
type Watcher struct {
	sink   ports.NotificationSink
	log    logging.Logger
	modems map[string]ports.MessageWaitingState
}

// NewWatcher creates a voicemail-waiting watcher.
func NewWatcher(sink ports.NotificationSink, log logging.Logger) *Watcher {
	return &Watcher{
		sink:   sink,
		log:    log.With("component", "telephony"),
		modems: make(map[string]ports.MessageWaitingState),
	}
}

// OnModemsChanged replaces the tracked modem set. State for vanished
// modems is dropped; fresh indicator state arrives per modem afterwards.
func (w *Watcher) OnModemsChanged(paths []string) {
	w.log.Debug("modems changed", "count", len(paths))
	known := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		known[path] = struct{}{}
	}
	for path := range w.modems {
		if _, ok := known[path]; !ok {
			delete(w.modems, path)
		}
	}
}

// OnModemRemoved drops a single modem's indicator state.
func (w *Watcher) OnModemRemoved(path string) {
	w.log.Debug("modem removed", "path", path)
	delete(w.modems, path)
}

// OnMessageWaitingChanged applies one modem's indicator change and
// republishes or closes the voicemail-waiting notification.
func (w *Watcher) OnMessageWaitingChanged(state ports.MessageWaitingState) {
	w.log.Debug("voicemail waiting changed",
		"modem", state.ModemPath, "waiting", state.Waiting, "count", state.MessageCount)
	w.modems[state.ModemPath] = state
	w.sync(state)
}

func (w *Watcher) sync(state ports.MessageWaitingState) {
	// See if a voicemail-waiting notification is already published.
	var currentID uint32
	records, err := w.sink.OpenRecords()
	if err != nil {
		w.log.Warn("failed to read open notifications", "error", err)
	}
	for _, rec := range records {
		if rec.Category != VoicemailWaitingCategory {
			continue
		}
		if state.Waiting {
			currentID = rec.ID
		} else {
			w.log.Debug("closing voicemail waiting notification", "id", rec.ID)
			if err := w.sink.Close(rec.ID); err != nil {
				w.log.Warn("failed to close voicemail waiting notification", "id", rec.ID, "error", err)
			}
		}
	}

	if !state.Waiting {
		return
	}

	// When the indicator reports zero messages the real number is unknown;
	// report one as a fallback.
	count := state.MessageCount
	if count <= 0 {
		count = 1
	}

	summary := notifier.VoicemailWaitingText(count)
	id, err := w.sink.Publish(&ports.NotificationRecord{
		ReplacesID: currentID,
		AppName:    domain.CollectionVoicemail.GroupName(),
		Category:   VoicemailWaitingCategory,
		Summary:    summary,
		Body:       notifier.VoicemailPrompt,
		ItemCount:  count,
		Timestamp:  time.Now(),
		Actions:    notifier.VoicemailWaitingActions(state.MailboxNumber),
	})
	if err != nil {
		w.log.Warn("failed to publish voicemail waiting notification", "error", err)
		return
	}
	w.log.Debug("published voicemail waiting notification", "id", id, "count", count, "updated", currentID != 0)
}
