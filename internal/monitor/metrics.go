package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline counters exposed on /metrics.
type Metrics struct {
	PassesTotal      prometheus.Counter
	PassesSuppressed prometheus.Counter
	TicksSkipped     prometheus.Counter
	PassErrors       prometheus.Counter
	FacesDetected    prometheus.Counter
	MatchesTotal     prometheus.Counter
	AlertsEmitted    prometheus.Counter
}

// NewMetrics creates the pipeline counters and registers them with reg.
// A nil registerer yields unregistered counters, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_passes_total",
			Help: "Total pipeline passes, including suppressed ones.",
		}),
		PassesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_passes_suppressed_total",
			Help: "Passes skipped because of a break or no active class hour.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_ticks_skipped_total",
			Help: "Ticks dropped because the previous pass was still running.",
		}),
		PassErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_pass_errors_total",
			Help: "Recoverable faults encountered during passes.",
		}),
		FacesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_faces_detected_total",
			Help: "Face regions that cleared the detection threshold.",
		}),
		MatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_matches_total",
			Help: "Roster identities matched above the similarity threshold.",
		}),
		AlertsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "classwatch_alerts_emitted_total",
			Help: "Absence alerts persisted to the notification store.",
		}),
	}
}
