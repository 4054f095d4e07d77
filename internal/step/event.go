package step

// Event is the ordered step stream of one primary event, as delivered to a
// single worker.
type Event struct {
	ID    int64    `json:"event"`
	Steps []Record `json:"steps"`
}
