package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reliefroute"

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "results_total",
		Help:      "Classifications by source (semantic, fallback) and outcome",
	}, []string{"source", "outcome"})

	classificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "latency_seconds",
		Help:      "Time spent waiting on the semantic classifier",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "decisions_total",
		Help:      "Assignment decisions by mode (single, batch) and outcome",
	}, []string{"mode", "outcome"})

	assignmentScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "winning_score",
		Help:      "Total score of the selected responder",
		Buckets:   prometheus.LinearBuckets(-20, 10, 12),
	})

	recomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "recomputes_total",
		Help:      "Weight and reliability recomputes by outcome",
	}, []string{"kind", "outcome"})

	anomalyFlagsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "anomaly",
		Name:      "flags_total",
		Help:      "Requests flagged by anomaly scans",
	})

	lockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "lock_contention_total",
		Help:      "Assignment attempts rejected because another decision held the request lock",
	})

	geocodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocode",
		Name:      "lookups_total",
		Help:      "Location label lookups by outcome",
	}, []string{"outcome"})
)

func ObserveClassification(source, outcome string, waited time.Duration) {
	classificationsTotal.WithLabelValues(source, outcome).Inc()
	if waited > 0 {
		classificationLatency.Observe(waited.Seconds())
	}
}

func ObserveAssignment(mode, outcome string, total float64) {
	assignmentsTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "assigned" {
		assignmentScore.Observe(total)
	}
}

func ObserveRecompute(kind, outcome string) {
	recomputesTotal.WithLabelValues(kind, outcome).Inc()
}

func ObserveAnomalies(n int) {
	anomalyFlagsTotal.Add(float64(n))
}

func ObserveLockContention() {
	lockContentionTotal.Inc()
}

func ObserveGeocode(outcome string) {
	geocodeTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
