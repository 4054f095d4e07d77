package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tangle/internal/step"
)

// Reader decodes a step log.
type Reader struct {
	dec  *json.Decoder
	read int
}

// NewReader reads events from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Next returns the next event, or io.EOF at the end of the log.
func (r *Reader) Next() (step.Event, error) {
	var ev step.Event
	if err := r.dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return step.Event{}, io.EOF
		}
		return step.Event{}, fmt.Errorf("read event %d: %w", r.read, err)
	}
	r.read++
	return ev, nil
}

// Read is the number of events decoded so far.
func (r *Reader) Read() int {
	return r.read
}

// Writer encodes a step log.
type Writer struct {
	enc     *json.Encoder
	written int
}

// NewWriter writes events to w, one per line.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

// Write appends one event.
func (w *Writer) Write(ev step.Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("write event %d: %w", ev.ID, err)
	}
	w.written++
	return nil
}

// Written is the number of events written so far.
func (w *Writer) Written() int {
	return w.written
}

// Copy drains src into w and returns the number of events copied.
func Copy(w *Writer, src Source) (int, error) {
	n := 0
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := w.Write(ev); err != nil {
			return n, err
		}
		n++
	}
}
