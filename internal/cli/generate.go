package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tangle/internal/transport"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Config string
	Events int64
	Seed   uint64
	Output string
}

// GenerateResult reports what generate wrote.
type GenerateResult struct {
	Events int    `json:"events"`
	Seed   uint64 `json:"seed"`
	Output string `json:"output"`
}

func (r GenerateResult) String() string {
	return fmt.Sprintf("Wrote %d events (seed %d) to %s", r.Events, r.Seed, r.Output)
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic step log",
		Long: `Write a reproducible synthetic step log in the JSON-lines format read by
reconstruct. The same seed, event count and config always produce the
same file. Use "-o -" to write to stdout.

Example:
  tangle generate --events 10000 --seed 7 -o steps.jsonl
  tangle generate --config ring.yaml -o - | tangle reconstruct -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to run configuration YAML")
	cmd.Flags().Int64Var(&opts.Events, "events", 1000, "number of events")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file, - for stdout (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Events < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("events must not be negative, got %d", opts.Events))
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	src, err := transport.NewSynthetic(cfg, opts.Seed, opts.Events)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create generator", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()
		out = f
	}

	bw := bufio.NewWriter(out)
	n, err := transport.Copy(transport.NewWriter(bw), src)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to write step log", err)
	}
	if err := bw.Flush(); err != nil {
		return WrapExitError(ExitFailure, "failed to write step log", err)
	}

	slog.Info("step log written", "events", n, "seed", opts.Seed, "output", opts.Output)

	// stdout carries the log itself
	if opts.Output == "-" {
		return nil
	}
	return formatter.Success(GenerateResult{Events: n, Seed: opts.Seed, Output: opts.Output})
}
