// Package config holds the read-only run configuration consumed by the
// reconstruction engine: source mode, beam-axis mode, polarization mode,
// emission threshold and ring size.
//
// Configuration is read from YAML, defaulted, and validated against an
// embedded CUE schema before any cross-field checks run.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tangle/internal/detector"
)

//go:embed schema.cue
var schemaCUE string

// SourceMode selects how the two photons enter the event.
type SourceMode string

const (
	// BackToBack emits two photons directly; they are tracks 1 and 2.
	BackToBack SourceMode = "back-to-back"
	// PositronSource emits a positron (track 1) whose annihilation yields
	// the photons as tracks 2 and 3.
	PositronSource SourceMode = "positron"
)

// PolarizationMode describes the relative polarization of the two photons
// produced by the source.
type PolarizationMode string

const (
	PolRandom        PolarizationMode = "random"
	PolPerpendicular PolarizationMode = "perpendicular"
	PolParallel      PolarizationMode = "parallel"
)

// Default values.
const (
	DefaultThresholdKeV = 5.0
	DefaultSource       = BackToBack
	DefaultPolarization = PolPerpendicular
)

// Config is the run configuration.
type Config struct {
	Source       SourceMode       `yaml:"source" json:"source"`
	FixedAxis    bool             `yaml:"fixed_axis" json:"fixed_axis"`
	Polarization PolarizationMode `yaml:"polarization" json:"polarization"`
	// ThresholdKeV is the minimum deposit in each central crystal for a
	// record to be written and for the event to count toward the run total.
	ThresholdKeV float64 `yaml:"energy_threshold_kev" json:"energy_threshold_kev"`
	Elements     int     `yaml:"elements" json:"elements"`
	// Central overrides the central crystal of side A and side B.
	Central []int `yaml:"central,omitempty" json:"central,omitempty"`
	// FastPath enables the second-photon short-circuit.
	FastPath *bool `yaml:"fast_path,omitempty" json:"fast_path,omitempty"`
	Workers  int   `yaml:"workers" json:"workers"`
}

// Default returns the configuration of the reference setup.
func Default() Config {
	return Config{
		Source:       DefaultSource,
		Polarization: DefaultPolarization,
		ThresholdKeV: DefaultThresholdKeV,
		Elements:     detector.DefaultElements,
		Workers:      runtime.NumCPU(),
	}
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against the CUE schema and the ring
// geometry.
func (c Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	if _, err := c.Layout(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Layout builds the detector layout described by the configuration.
func (c Config) Layout() (*detector.Layout, error) {
	l, err := detector.NewLayout(c.Elements)
	if err != nil {
		return nil, err
	}
	if len(c.Central) == 0 {
		return l, nil
	}
	if len(c.Central) != 2 {
		return nil, fmt.Errorf("central must list exactly two crystals, got %d", len(c.Central))
	}
	return l.WithCentral(c.Central[0], c.Central[1])
}

// ThresholdMeV returns the emission threshold in MeV, the unit of step
// deposits.
func (c Config) ThresholdMeV() float64 {
	return c.ThresholdKeV / 1000
}

// FastPathEnabled reports whether the second-photon short-circuit is on.
// It defaults to true.
func (c Config) FastPathEnabled() bool {
	return c.FastPath == nil || *c.FastPath
}

// TrackRoles names the track ids of the two annihilation photons.
type TrackRoles struct {
	Primary   int
	Secondary int
}

// Roles resolves the photon track ids for the configured source mode.
func (c Config) Roles() TrackRoles {
	if c.Source == PositronSource {
		return TrackRoles{Primary: 2, Secondary: 3}
	}
	return TrackRoles{Primary: 1, Secondary: 2}
}

func validateSchema(c Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c.schemaFields()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// schemaFields is the config as a plain map so that unset optional fields
// are absent rather than null.
func (c Config) schemaFields() map[string]any {
	m := map[string]any{
		"source":               string(c.Source),
		"fixed_axis":           c.FixedAxis,
		"polarization":         string(c.Polarization),
		"energy_threshold_kev": c.ThresholdKeV,
		"elements":             c.Elements,
		"workers":              c.Workers,
	}
	if c.Central != nil {
		m["central"] = c.Central
	}
	if c.FastPath != nil {
		m["fast_path"] = *c.FastPath
	}
	return m
}
