package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/detector"
)

// ValidationResult holds the resolved configuration of a valid file.
type ValidationResult struct {
	Valid        bool                    `json:"valid"`
	Source       config.SourceMode       `json:"source"`
	Polarization config.PolarizationMode `json:"polarization"`
	FixedAxis    bool                    `json:"fixed_axis"`
	Elements     int                     `json:"elements"`
	Central      [2]int                  `json:"central"`
	Tracks       [2]int                  `json:"tracks"`
	ThresholdKeV float64                 `json:"energy_threshold_kev"`
	FastPath     bool                    `json:"fast_path"`
	Workers      int                     `json:"workers"`
	Fingerprint  string                  `json:"fingerprint"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf(`✓ Config valid
  Source:       %s (photon tracks %d, %d)
  Polarization: %s
  Fixed axis:   %t
  Crystals:     %d (central %d, %d)
  Threshold:    %g keV
  Fast path:    %t
  Workers:      %d
  Fingerprint:  %s`,
		r.Source, r.Tracks[0], r.Tracks[1],
		r.Polarization, r.FixedAxis,
		r.Elements, r.Central[0], r.Central[1],
		r.ThresholdKeV, r.FastPath, r.Workers, r.Fingerprint)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a run configuration",
		Long: `Validate a run configuration without reconstructing anything.

Checks the YAML against the configuration schema and the ring geometry,
then prints the resolved settings, defaults included.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
	}

	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidConfig, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid config", err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}
	roles := cfg.Roles()
	fp, err := cfg.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}

	return formatter.Success(ValidationResult{
		Valid:        true,
		Source:       cfg.Source,
		Polarization: cfg.Polarization,
		FixedAxis:    cfg.FixedAxis,
		Elements:     cfg.Elements,
		Central:      [2]int{layout.Central(detector.SideA), layout.Central(detector.SideB)},
		Tracks:       [2]int{roles.Primary, roles.Secondary},
		ThresholdKeV: cfg.ThresholdKeV,
		FastPath:     cfg.FastPathEnabled(),
		Workers:      cfg.Workers,
		Fingerprint:  fp,
	})
}
