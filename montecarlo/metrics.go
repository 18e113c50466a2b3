package montecarlo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts sampler and aggregator work. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	attempts    prometheus.Counter
	failures    *prometheus.CounterVec
	repairs     prometheus.Counter
	samples     prometheus.Counter
	reused      prometheus.Counter
	turnSeconds prometheus.Histogram
}

// NewMetrics registers the sampler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salvo",
			Subsystem: "sampler",
			Name:      "attempts_total",
			Help:      "Sampling attempts started.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salvo",
			Subsystem: "sampler",
			Name:      "attempt_failures_total",
			Help:      "Sampling attempts discarded, by reason.",
		}, []string{"reason"}),
		repairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salvo",
			Subsystem: "sampler",
			Name:      "repairs_total",
			Help:      "Placements swapped in during the repair phase.",
		}),
		samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salvo",
			Subsystem: "aggregator",
			Name:      "samples_drawn_total",
			Help:      "Boards added to a pool by fresh sampling.",
		}),
		reused: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salvo",
			Subsystem: "aggregator",
			Name:      "samples_reused_total",
			Help:      "Boards carried over from the previous turn's pool.",
		}),
		turnSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salvo",
			Subsystem: "aggregator",
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent building one turn's probability map.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

func (m *Metrics) attemptStarted() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *Metrics) attemptFailed(reason string) {
	if m != nil {
		m.failures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) repaired() {
	if m != nil {
		m.repairs.Inc()
	}
}

func (m *Metrics) turnDone(drawn, reused int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.samples.Add(float64(drawn))
	m.reused.Add(float64(reused))
	m.turnSeconds.Observe(elapsed.Seconds())
}
