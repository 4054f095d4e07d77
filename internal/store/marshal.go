package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/geom"
	"github.com/roach88/tangle/internal/record"
)

// marshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// marshalRecord converts a record to JSON TEXT for the body column.
// Non-finite observables, which degenerate input vectors can produce, are
// stored as their absence sentinels since JSON has no NaN.
func marshalRecord(rec *record.Record) (string, error) {
	data, err := marshalJSON(finiteRecord(rec))
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

func unmarshalRecord(data string) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return record.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func marshalConfig(cfg config.Config) (string, error) {
	data, err := marshalJSON(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

func unmarshalConfig(data string) (config.Config, error) {
	var cfg config.Config
	if data == "" || data == "{}" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return config.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func finiteRecord(rec *record.Record) *record.Record {
	c := *rec
	c.DeltaPhi = finite(c.DeltaPhi, record.AbsentDelta)
	for i := range c.Deltas {
		for j := range c.Deltas[i] {
			c.Deltas[i][j] = finite(c.Deltas[i][j], record.AbsentDelta)
		}
	}
	for i := range c.Sides {
		s := &c.Sides[i]
		s.Theta1 = finite(s.Theta1, record.AbsentAngle)
		s.Phi1 = finite(s.Phi1, record.AbsentAngle)
		s.Theta2 = finite(s.Theta2, record.AbsentAngle)
		s.Phi2 = finite(s.Phi2, record.AbsentAngle)
		s.Polarization = finite(s.Polarization, record.AbsentAngle)
		s.FirstHit = finiteVec(s.FirstHit)
		s.SecondHit = finiteVec(s.SecondHit)
		s.FirstPhoto = finiteVec(s.FirstPhoto)
		s.SecondPhoto = finiteVec(s.SecondPhoto)
	}
	return &c
}

func finite(v, absent float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return absent
	}
	return v
}

func finiteVec(v geom.Vec) geom.Vec {
	return geom.Vec{
		X: finite(v.X, record.AbsentCoord),
		Y: finite(v.Y, record.AbsentCoord),
		Z: finite(v.Z, record.AbsentCoord),
	}
}
