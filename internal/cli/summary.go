package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/tangle/internal/store"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Database string
	RunID    int
	Bins     int
}

// RunRow is one line of the run listing.
type RunRow struct {
	ID       int    `json:"id"`
	UID      string `json:"uid"`
	Elements int    `json:"elements"`
	Events   int64  `json:"events"`
	Total    int64  `json:"threshold_events"`
	Emitted  int64  `json:"records"`
	Workers  int    `json:"workers"`
	Reported bool   `json:"reported"`
	// Fingerprint is the stored config's Fingerprint.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// DeltaPhiStats describes the deltaPhi distribution of a run.
type DeltaPhiStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	// Modulation is μ of a least-squares fit N(Δφ) = A(1 - μ cos 2Δφ) to
	// the histogram.
	Modulation float64   `json:"modulation"`
	Edges      []float64 `json:"edges"`
	Counts     []float64 `json:"counts"`
}

// RunSummaryResult is the detailed summary of one run.
type RunSummaryResult struct {
	Run        RunRow        `json:"run"`
	Categories [2][2]int64   `json:"categories"`
	DeltaPhi   DeltaPhiStats `json:"delta_phi"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise stored runs",
		Long: `List the runs in a database, or with --run show one run's totals,
scatter-order pairings and deltaPhi histogram.

Example:
  tangle summary --db ./tangle.db
  tangle summary --db ./tangle.db --run 3 --bins 18
  tangle summary --db ./tangle.db --run 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.RunID, "run", -1, "run id to summarise (default: list all runs)")
	cmd.Flags().IntVar(&opts.Bins, "bins", 36, "deltaPhi histogram bins over [0, 360)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSummary(opts *SummaryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Bins < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("bins must be positive, got %d", opts.Bins))
	}

	// Check database exists; Open would create an empty one
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID < 0 {
		rows, err := listRuns(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(rows)
		}
		writeRunTable(cmd.OutOrStdout(), rows)
		return nil
	}

	res, err := summarizeRun(ctx, st, opts.RunID, opts.Bins)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("run %d not found", opts.RunID), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	writeRunSummary(cmd.OutOrStdout(), res)
	return nil
}

func listRuns(ctx context.Context, st *store.Store) ([]RunRow, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]RunRow, len(runs))
	for i, r := range runs {
		rows[i] = runRow(r)
	}
	return rows, nil
}

func runRow(r store.Run) RunRow {
	fp, err := r.Config.Fingerprint()
	if err != nil {
		slog.Warn("stored config has no fingerprint", "run", r.ID, "error", err)
	}
	return RunRow{
		ID:       r.ID,
		UID:      r.UID,
		Elements: r.Elements,
		Events:   r.Summary.Events,
		Total:    r.Summary.Total,
		Emitted:  r.Summary.Emitted,
		Workers:  r.Summary.Workers,
		Reported: r.Reported,

		Fingerprint: fp,
	}
}

func summarizeRun(ctx context.Context, st *store.Store, runID, bins int) (RunSummaryResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return RunSummaryResult{}, err
	}
	dphi, err := st.DeltaPhis(ctx, runID)
	if err != nil {
		return RunSummaryResult{}, err
	}
	return RunSummaryResult{
		Run:        runRow(run),
		Categories: run.Summary.Categories,
		DeltaPhi:   AnalyzeDeltaPhi(dphi, bins),
	}, nil
}

// AnalyzeDeltaPhi histograms the deltaPhi values in [0, 360) into bins and
// fits the cos 2Δφ modulation. Values outside the range, such as the
// absence sentinel, are skipped. The input is not modified.
func AnalyzeDeltaPhi(values []float64, bins int) DeltaPhiStats {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= 0 && v < 360 {
			x = append(x, v)
		}
	}
	sort.Float64s(x)

	edges := floats.Span(make([]float64, bins+1), 0, 360)
	res := DeltaPhiStats{
		Count:  len(x),
		Edges:  edges,
		Counts: make([]float64, bins),
	}
	if len(x) == 0 {
		return res
	}

	res.Mean, res.StdDev = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		res.StdDev = 0
	}
	res.Counts = stat.Histogram(nil, edges, x, nil)

	if bins >= 2 {
		centres := make([]float64, bins)
		for i := range centres {
			mid := (edges[i] + edges[i+1]) / 2
			centres[i] = math.Cos(2 * mid * math.Pi / 180)
		}
		alpha, beta := stat.LinearRegression(centres, res.Counts, nil, false)
		if alpha != 0 && !math.IsNaN(alpha) && !math.IsNaN(beta) {
			res.Modulation = -beta / alpha
		}
	}
	return res
}

func writeRunTable(w io.Writer, rows []RunRow) {
	p := message.NewPrinter(language.English)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs.")
		return
	}
	p.Fprintf(w, "%-5s %-36s %8s %12s %12s %10s %s\n", "RUN", "UID", "CRYSTALS", "EVENTS", "THRESHOLD", "RECORDS", "REPORTED")
	for _, r := range rows {
		p.Fprintf(w, "%-5d %-36s %8d %12d %12d %10d %t\n",
			r.ID, r.UID, r.Elements, r.Events, r.Total, r.Emitted, r.Reported)
	}
}

func writeRunSummary(w io.Writer, res RunSummaryResult) {
	p := message.NewPrinter(language.English)
	r := res.Run

	p.Fprintf(w, "Run %d (%s)\n", r.ID, r.UID)
	if !r.Reported {
		fmt.Fprintln(w, "  Status: incomplete (run total never reported)")
	}
	p.Fprintf(w, "  Events:           %d\n", r.Events)
	p.Fprintf(w, "  Threshold events: %d\n", r.Total)
	p.Fprintf(w, "  Records:          %d\n", r.Emitted)
	p.Fprintf(w, "  Workers:          %d\n", r.Workers)
	if r.Fingerprint != "" {
		fmt.Fprintf(w, "  Config:           %s\n", r.Fingerprint[:12])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Pairings ===")
	p.Fprintf(w, "  A1/B1: %d\n", res.Categories[0][0])
	p.Fprintf(w, "  A2/B1: %d\n", res.Categories[1][0])
	p.Fprintf(w, "  A1/B2: %d\n", res.Categories[0][1])
	p.Fprintf(w, "  A2/B2: %d\n", res.Categories[1][1])
	fmt.Fprintln(w)

	d := res.DeltaPhi
	fmt.Fprintln(w, "=== deltaPhi ===")
	if d.Count == 0 {
		fmt.Fprintln(w, "  (no records)")
		return
	}
	p.Fprintf(w, "  Records:    %d\n", d.Count)
	p.Fprintf(w, "  Mean:       %.2f°\n", d.Mean)
	p.Fprintf(w, "  Std dev:    %.2f°\n", d.StdDev)
	p.Fprintf(w, "  Modulation: %.4f\n", d.Modulation)
	for i, c := range d.Counts {
		p.Fprintf(w, "  [%6.1f, %6.1f) %d\n", d.Edges[i], d.Edges[i+1], int64(c))
	}
}
