package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/record"
	"github.com/roach88/tangle/internal/testutil"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	e := newTestEngine(t, zeroThreshold(), &record.MemorySink{}, WithMetrics(m))
	require.NoError(t, e.BeginRun(0))

	runEvent(t, e, 1, referenceSteps()...)
	runEvent(t, e, 2, testutil.Transport(2, 1, testutil.MinusX))
	runEvent(t, e, 3,
		testutil.ComptonAngles(1, 1, 3, testutil.PlusX, 30, 10, 0.2),
		testutil.ComptonAngles(2, 1, 12, testutil.MinusX, 40, -20, 0.3),
	)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.events))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.steps))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.comptonSteps))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ineligible))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.thresholdEvents))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.records.WithLabelValues(OutcomeEmitted)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.records.WithLabelValues(OutcomeBelowThreshold)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.records.WithLabelValues(OutcomeNoCoincidence)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.pairings.WithLabelValues("1_1")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.pairings.WithLabelValues("2_2")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.eventDeposit))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	e := newTestEngine(t, zeroThreshold(), nil)
	require.NoError(t, e.BeginRun(0))

	assert.NotPanics(t, func() {
		runEvent(t, e, 1, referenceSteps()...)
	})
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) })
}
