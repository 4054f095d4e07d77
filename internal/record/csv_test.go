package record

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangle/internal/geom"
)

func fixtureRecord() *Record {
	return &Record{
		RunID:             0,
		EventID:           7,
		Worker:            1,
		Deposits:          []float64{0.2, 0, 0, 0.3},
		Compton:           []int{1, 0, 0, 1},
		Photo:             []int{0, 0, 0, 1},
		CollimatorDeposit: [2]float64{0, 0.01},
		Sides: [2]Side{
			{
				Scatters:     1,
				FirstHit:     geom.Vec{X: 49, Y: 0.5, Z: -1},
				SecondHit:    AbsentPosition,
				FirstPhoto:   AbsentPosition,
				SecondPhoto:  AbsentPosition,
				Theta1:       30,
				Phi1:         10,
				Theta2:       AbsentAngle,
				Phi2:         AbsentAngle,
				Polarization: AbsentAngle,
			},
			{
				Scatters:     2,
				FirstHit:     geom.Vec{X: -49, Y: 1, Z: 0},
				SecondHit:    geom.Vec{X: -52, Y: 2, Z: 0},
				FirstPhoto:   geom.Vec{X: -55, Y: 2, Z: 1},
				SecondPhoto:  AbsentPosition,
				Theta1:       40,
				Phi1:         -20,
				Theta2:       75.5,
				Phi2:         120,
				Polarization: 90,
			},
		},
		DeltaPhi:     350,
		Deltas:       Deltas{{350, 110}, {AbsentDelta, AbsentDelta}},
		HitsA:        1,
		HitsB:        1,
		EventDeposit: 0.5,
	}
}

func TestCSVSink_Golden(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, 4)

	require.NoError(t, sink.Emit(context.Background(), fixtureRecord()))
	require.NoError(t, sink.ReportRunTotal(context.Background(), RunSummary{RunID: 0, Total: 12}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "csv_sink", buf.Bytes())
}

func TestCSVSink_HeaderWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, 4)

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Emit(context.Background(), fixtureRecord()))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "run,event,worker,crystal0"))
	assert.Equal(t, 1, strings.Count(buf.String(), "run,event,worker"))
}

func TestCSVSink_RowMatchesHeader(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, 4)
	require.NoError(t, sink.Emit(context.Background(), fixtureRecord()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, len(rows[0]), len(rows[1]))
}

func TestCSVSink_ConcurrentRowsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, 4)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec := fixtureRecord()
				rec.Worker = w
				rec.EventID = int64(i)
				assert.NoError(t, sink.Emit(context.Background(), rec))
			}
		}(w)
	}
	wg.Wait()

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err, "every row must parse with the header's column count")
	assert.Len(t, rows, workers*perWorker+1)
}

type failingSink struct{ err error }

func (f failingSink) Emit(context.Context, *Record) error { return f.err }

func TestMultiSink_JoinsErrors(t *testing.T) {
	mem := &MemorySink{}
	boom := errors.New("boom")

	err := MultiSink{failingSink{boom}, mem}.Emit(context.Background(), fixtureRecord())

	require.ErrorIs(t, err, boom)
	assert.Len(t, mem.Records(), 1, "later sinks still receive the record")
}

func TestMultiReporter_ForwardsSummary(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	sum := RunSummary{RunID: 3, Total: 9}

	require.NoError(t, MultiReporter{a, b, LogReporter{}}.ReportRunTotal(context.Background(), sum))

	assert.Equal(t, []RunSummary{sum}, a.Summaries())
	assert.Equal(t, []RunSummary{sum}, b.Summaries())
}

func TestCategories_Add(t *testing.T) {
	c := Categories{{1, 2}, {3, 4}}
	c.Add(Categories{{10, 20}, {30, 40}})
	assert.Equal(t, Categories{{11, 22}, {33, 44}}, c)
}
