// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by the notification core and sink.
type Metrics struct {
	EventsReceived     *prometheus.CounterVec
	EventsSuppressed   prometheus.Counter
	EditsMatched       prometheus.Counter
	MembersRemoved     prometheus.Counter
	PendingResolutions prometheus.Gauge
	Published          prometheus.Counter
	PublishFailures    prometheus.Counter
	CuesPlayed         prometheus.Counter
}

// New creates the metric collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "events_received_total",
			Help:      "Communication events delivered to the notification core.",
		}, []string{"collection"}),
		EventsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "events_suppressed_total",
			Help:      "Events suppressed because their conversation was observed by the UI.",
		}),
		EditsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "edits_matched_total",
			Help:      "Edited events matched to an existing member notification by token.",
		}),
		MembersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "members_removed_total",
			Help:      "Member notifications removed from their group.",
		}),
		PendingResolutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "commtrayd",
			Name:      "pending_resolutions",
			Help:      "Member notifications awaiting contact resolution.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "notifications_published_total",
			Help:      "Notification records published or updated in the sink.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "publish_failures_total",
			Help:      "Notification publishes that failed.",
		}),
		CuesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commtrayd",
			Name:      "cues_played_total",
			Help:      "Audio feedback cues played.",
		}),
	}
	reg.MustRegister(
		m.EventsReceived,
		m.EventsSuppressed,
		m.EditsMatched,
		m.MembersRemoved,
		m.PendingResolutions,
		m.Published,
		m.PublishFailures,
		m.CuesPlayed,
	)
	return m
}
