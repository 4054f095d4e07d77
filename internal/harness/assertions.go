package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/tangle/internal/detector"
	"github.com/roach88/tangle/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Events   []int64
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "  Records for events: %v\n", e.Events)

	return buf.String()
}

// observable reads one named value from a record.
type observable func(r *record.Record) float64

func sideObs(s detector.Side, f func(record.Side) float64) observable {
	return func(r *record.Record) float64 { return f(r.Sides[s]) }
}

// observables are the record values a record assertion can name.
var observables = map[string]observable{
	"delta_phi":     func(r *record.Record) float64 { return r.DeltaPhi },
	"dphi_a1b2":     func(r *record.Record) float64 { return r.Deltas[0][1] },
	"dphi_a2b1":     func(r *record.Record) float64 { return r.Deltas[1][0] },
	"dphi_a2b2":     func(r *record.Record) float64 { return r.Deltas[1][1] },
	"hits_a":        func(r *record.Record) float64 { return float64(r.HitsA) },
	"hits_b":        func(r *record.Record) float64 { return float64(r.HitsB) },
	"event_deposit": func(r *record.Record) float64 { return r.EventDeposit },
	"coll1":         func(r *record.Record) float64 { return r.CollimatorDeposit[0] },
	"coll2":         func(r *record.Record) float64 { return r.CollimatorDeposit[1] },

	"scatters_a":     sideObs(detector.SideA, func(s record.Side) float64 { return float64(s.Scatters) }),
	"theta1_a":       sideObs(detector.SideA, func(s record.Side) float64 { return s.Theta1 }),
	"phi1_a":         sideObs(detector.SideA, func(s record.Side) float64 { return s.Phi1 }),
	"theta2_a":       sideObs(detector.SideA, func(s record.Side) float64 { return s.Theta2 }),
	"phi2_a":         sideObs(detector.SideA, func(s record.Side) float64 { return s.Phi2 }),
	"polarization_a": sideObs(detector.SideA, func(s record.Side) float64 { return s.Polarization }),
	"scatters_b":     sideObs(detector.SideB, func(s record.Side) float64 { return float64(s.Scatters) }),
	"theta1_b":       sideObs(detector.SideB, func(s record.Side) float64 { return s.Theta1 }),
	"phi1_b":         sideObs(detector.SideB, func(s record.Side) float64 { return s.Phi1 }),
	"theta2_b":       sideObs(detector.SideB, func(s record.Side) float64 { return s.Theta2 }),
	"phi2_b":         sideObs(detector.SideB, func(s record.Side) float64 { return s.Phi2 }),
	"polarization_b": sideObs(detector.SideB, func(s record.Side) float64 { return s.Polarization }),
}

// summaryFields are the run total values a run_total assertion can name.
var summaryFields = map[string]func(record.RunSummary) int64{
	"total":   func(s record.RunSummary) int64 { return s.Total },
	"events":  func(s record.RunSummary) int64 { return s.Events },
	"emitted": func(s record.RunSummary) int64 { return s.Emitted },
	"workers": func(s record.RunSummary) int64 { return int64(s.Workers) },
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, tol float64) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, tol); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, tol float64) error {
	switch a.Type {
	case AssertRecordCount:
		return assertRecordCount(result, a)
	case AssertRecord:
		return assertRecord(result, a, tol)
	case AssertNoRecord:
		return assertNoRecord(result, a)
	case AssertRunTotal:
		return assertRunTotal(result, a)
	case AssertCategory:
		return assertCategory(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertRecordCount(result *Result, a Assertion) error {
	if int64(len(result.Records)) != *a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", *a.Count),
			Actual:   fmt.Sprintf("%d records", len(result.Records)),
			Events:   eventIDs(result),
		}
	}
	return nil
}

// assertRecord checks the listed observables of one event's record.
// Keys are checked in sorted order so the first mismatch is deterministic.
func assertRecord(result *Result, a Assertion, tol float64) error {
	rec, ok := result.Record(a.Event)
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record for event %d", a.Event),
			Actual:   "no record",
			Events:   eventIDs(result),
		}
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		obs, ok := observables[key]
		if !ok {
			return fmt.Errorf("unknown record observable %q", key)
		}
		want, got := a.Expect[key], obs(rec)
		if math.Abs(want-got) > tol {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("event %d %s = %v (±%g)", a.Event, key, want, tol),
				Actual:   fmt.Sprintf("event %d %s = %v", a.Event, key, got),
				Events:   eventIDs(result),
			}
		}
	}
	return nil
}

func assertNoRecord(result *Result, a Assertion) error {
	if _, ok := result.Record(a.Event); ok {
		return &AssertionError{
			Type:     AssertNoRecord,
			Expected: fmt.Sprintf("no record for event %d", a.Event),
			Actual:   "record emitted",
			Events:   eventIDs(result),
		}
	}
	return nil
}

func assertRunTotal(result *Result, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, ok := summaryFields[key]
		if !ok {
			return fmt.Errorf("unknown run_total field %q", key)
		}
		want, got := int64(a.Expect[key]), field(result.Summary)
		if want != got {
			return &AssertionError{
				Type:     AssertRunTotal,
				Expected: fmt.Sprintf("%s = %d", key, want),
				Actual:   fmt.Sprintf("%s = %d", key, got),
				Events:   eventIDs(result),
			}
		}
	}
	return nil
}

func assertCategory(result *Result, a Assertion) error {
	got := result.Summary.Categories[a.Pair[0]-1][a.Pair[1]-1]
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertCategory,
			Expected: fmt.Sprintf("pairing A%d/B%d counted %d times", a.Pair[0], a.Pair[1], *a.Count),
			Actual:   fmt.Sprintf("counted %d times", got),
			Events:   eventIDs(result),
		}
	}
	return nil
}

func eventIDs(result *Result) []int64 {
	ids := make([]int64, len(result.Records))
	for i, r := range result.Records {
		ids[i] = r.EventID
	}
	return ids
}
