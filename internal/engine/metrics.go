package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes reported by the records metric.
const (
	OutcomeEmitted        = "emitted"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeNoCoincidence  = "no_coincidence"
)

// Metrics holds the engine's Prometheus collectors. One Metrics value is
// shared by every worker; a nil *Metrics disables collection.
type Metrics struct {
	events          prometheus.Counter
	steps           prometheus.Counter
	comptonSteps    prometheus.Counter
	ineligible      prometheus.Counter
	thresholdEvents prometheus.Counter
	records         *prometheus.CounterVec
	pairings        *prometheus.CounterVec
	eventDeposit    prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounter(prometheus.CounterOpts{
			Name: "tangle_events_total",
			Help: "Events processed by all workers.",
		}),
		steps: f.NewCounter(prometheus.CounterOpts{
			Name: "tangle_steps_total",
			Help: "Step records consumed.",
		}),
		comptonSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "tangle_compton_steps_total",
			Help: "Compton steps inside crystals.",
		}),
		ineligible: f.NewCounter(prometheus.CounterOpts{
			Name: "tangle_events_short_circuited_total",
			Help: "Events marked ineligible by the second-photon short-circuit.",
		}),
		thresholdEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "tangle_threshold_events_total",
			Help: "Events with both central crystals above the energy threshold.",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tangle_records_total",
			Help: "Event classification outcomes.",
		}, []string{"outcome"}),
		pairings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tangle_scatter_pairings_total",
			Help: "Events per scatter-order pairing (A order, B order).",
		}, []string{"pairing"}),
		eventDeposit: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tangle_event_deposit_mev",
			Help:    "Summed crystal deposit per event.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.511, 0.75, 1.022, 1.5},
		}),
	}
}

var pairingLabels = [2][2]string{{"1_1", "1_2"}, {"2_1", "2_2"}}

func (m *Metrics) observeEvent(st *EventState, compton int) {
	if m == nil {
		return
	}
	m.events.Inc()
	m.steps.Add(float64(st.Steps))
	m.comptonSteps.Add(float64(compton))
	m.eventDeposit.Observe(st.Deposits.Total())
	if !st.Eligible {
		m.ineligible.Inc()
	}
}

func (m *Metrics) observeOutcome(outcome string, threshold bool, pairs [2][2]bool) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(outcome).Inc()
	if threshold {
		m.thresholdEvents.Inc()
	}
	for i := range pairs {
		for j := range pairs[i] {
			if pairs[i][j] {
				m.pairings.WithLabelValues(pairingLabels[i][j]).Inc()
			}
		}
	}
}
