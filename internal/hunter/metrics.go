package hunter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"harpoon/pkg/monitoring"
)

// Metrics tracks pipeline admission activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	candidatesSeen *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	draftsCreated  *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
}

func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	m := &Metrics{
		candidatesSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_candidates_seen_total",
				Help: "Candidate posts entering the admission pipeline",
			},
			[]string{"campaign"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_admission_decisions_total",
				Help: "Admission decisions by outcome and reason",
			},
			[]string{"decision", "reason"},
		),
		draftsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harpoon_drafts_created_total",
				Help: "Drafts persisted for human review",
			},
			[]string{"campaign"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harpoon_hunt_cycle_duration_seconds",
				Help:    "Duration of one hunting cycle",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}
	mc.RegisterCustomMetric("harpoon_candidates_seen_total", m.candidatesSeen)
	mc.RegisterCustomMetric("harpoon_admission_decisions_total", m.decisions)
	mc.RegisterCustomMetric("harpoon_drafts_created_total", m.draftsCreated)
	mc.RegisterCustomMetric("harpoon_hunt_cycle_duration_seconds", m.cycleDuration)
	return m
}

func (m *Metrics) candidateSeen(campaign string) {
	if m == nil {
		return
	}
	m.candidatesSeen.WithLabelValues(campaign).Inc()
}

func (m *Metrics) decision(decision, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, reason).Inc()
}

func (m *Metrics) draftCreated(campaign string) {
	if m == nil {
		return
	}
	m.draftsCreated.WithLabelValues(campaign).Inc()
}

func (m *Metrics) cycleDone(start time.Time) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(time.Since(start).Seconds())
}
