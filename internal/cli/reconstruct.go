package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/tangle/internal/config"
	"github.com/roach88/tangle/internal/engine"
	"github.com/roach88/tangle/internal/record"
	"github.com/roach88/tangle/internal/runner"
	"github.com/roach88/tangle/internal/store"
	"github.com/roach88/tangle/internal/transport"
)

// ReconstructOptions holds flags for the reconstruct command.
type ReconstructOptions struct {
	*RootOptions
	Config      string
	Database    string
	CSV         string
	Workers     int
	RunID       int
	MetricsAddr string

	// UIDGenerator allows overriding the run uid generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	UIDGenerator store.UIDGenerator
}

// ReconstructResult is the outcome of one reconstruct run.
type ReconstructResult struct {
	RunID      int               `json:"run_id"`
	UID        string            `json:"uid,omitempty"`
	Events     int64             `json:"events"`
	Total      int64             `json:"threshold_events"`
	Emitted    int64             `json:"records"`
	Workers    int               `json:"workers"`
	Categories record.Categories `json:"categories"`
}

func (r ReconstructResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %d", r.RunID)
	if r.UID != "" {
		fmt.Fprintf(&b, " (%s)", r.UID)
	}
	fmt.Fprintf(&b, "\n  Events:           %d\n", r.Events)
	fmt.Fprintf(&b, "  Threshold events: %d\n", r.Total)
	fmt.Fprintf(&b, "  Records:          %d\n", r.Emitted)
	fmt.Fprintf(&b, "  Workers:          %d\n", r.Workers)
	fmt.Fprintf(&b, "  Pairings A1B1=%d A2B1=%d A1B2=%d A2B2=%d",
		r.Categories[0][0], r.Categories[1][0], r.Categories[0][1], r.Categories[1][1])
	return b.String()
}

// NewReconstructCommand creates the reconstruct command.
func NewReconstructCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconstructOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconstruct <steps.jsonl>",
		Short: "Reconstruct coincidences from a step log",
		Long: `Reconstruct Compton coincidences from a JSON-lines step log.

Each line of the log is one event. Events are spread over the configured
number of workers; qualifying records go to the SQLite database and/or a
CSV file, and the run total is reported once at the end. Use "-" to read
the log from stdin.

Example:
  tangle reconstruct --db ./tangle.db steps.jsonl
  tangle generate --events 10000 -o - | tangle reconstruct --csv out.csv -
  tangle reconstruct --config ring.yaml --workers 8 --metrics-addr :9100 steps.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconstruct(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to run configuration YAML")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for records")
	cmd.Flags().StringVar(&opts.CSV, "csv", "", "path to CSV output file")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker count (overrides config)")
	cmd.Flags().IntVar(&opts.RunID, "run", 0, "run id (default: next free id in the database, else 0)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runReconstruct(opts *ReconstructOptions, input string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}

	in, closeIn, err := openInput(input, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open step log", err)
	}
	defer closeIn()

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		sinks     record.MultiSink
		reporters = record.MultiReporter{record.LogReporter{}}
		runID     = opts.RunID
		uid       string
	)

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		if !cmd.Flags().Changed("run") {
			runID, err = st.NextRunID(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to allocate run id", err)
			}
		}

		uids := opts.UIDGenerator
		if uids == nil {
			uids = store.UUIDv7Generator{}
		}
		uid = uids.Generate()
		if err := st.BeginRun(ctx, runID, uid, cfg); err != nil {
			if errors.Is(err, store.ErrRunExists) {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, fmt.Sprintf("run %d already in database", runID), err)
			}
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		sinks = append(sinks, st)
		reporters = append(reporters, st)
	}

	if opts.CSV != "" {
		f, err := os.Create(opts.CSV)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create CSV file", err)
		}
		defer f.Close()
		csvSink := record.NewCSVSink(f, cfg.Elements)
		sinks = append(sinks, csvSink)
		reporters = append(reporters, csvSink)
	}

	if len(sinks) == 0 {
		slog.Warn("no --db or --csv given; records will be discarded")
	}

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	formatter.VerboseLog("Reconstructing %s as run %d with %d workers", input, runID, cfg.Workers)

	sum, err := runner.Run(ctx, cfg, transport.NewReader(in), sinks, reporters,
		runner.WithWorkers(cfg.Workers),
		runner.WithRunID(runID),
		runner.WithMetrics(metrics),
	)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	return formatter.Success(ReconstructResult{
		RunID:      sum.RunID,
		UID:        uid,
		Events:     sum.Events,
		Total:      sum.Total,
		Emitted:    sum.Emitted,
		Workers:    sum.Workers,
		Categories: sum.Categories,
	})
}

// loadConfig reads path, or returns the validated defaults when path is
// empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// openInput opens path for reading, or returns stdin for "-".
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// serveMetrics exposes reg on addr at /metrics until the returned stop
// function is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
