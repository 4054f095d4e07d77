package harness

import "github.com/roach88/tangle/internal/record"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Records are the stored records ordered by event id.
	Records []record.Record `json:"records"`

	// Summary is the stored run total.
	Summary record.RunSummary `json:"summary"`

	// CSV is the CSV sink output, used for golden comparison.
	CSV []byte `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Records: []record.Record{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record returns the record of an event.
func (r *Result) Record(eventID int64) (*record.Record, bool) {
	for i := range r.Records {
		if r.Records[i].EventID == eventID {
			return &r.Records[i], true
		}
	}
	return nil, false
}
