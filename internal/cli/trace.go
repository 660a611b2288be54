package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/store"
	"github.com/roach88/bindery/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Scenario string
	RunID    string
	Latest   bool
	Kinds    []string
}

// TraceResult is the JSON output of the trace command. Runs is set when
// listing; Run and Events when showing one run.
type TraceResult struct {
	Runs   []store.Run   `json:"runs,omitempty"`
	Run    *store.Run    `json:"run,omitempty"`
	Events []trace.Event `json:"events,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded binding traces",
		Long: `Inspect runs recorded by render --db and test --db.

Without --run or --latest, lists recorded runs, optionally restricted to
one scenario. With --run, or --latest and --scenario, prints the events
of one run in sequence order.

Examples:
  bindery trace --db traces.db
  bindery trace --db traces.db --scenario hello
  bindery trace --db traces.db --scenario hello --latest --kind update
  bindery trace --db traces.db --run 0192f0c4-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "restrict to one scenario")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the events of this run")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "show the events of the scenario's latest run")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only show events of these kinds")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.Latest && opts.Scenario == "" {
		return NewExitError(ExitCommandError, "--latest requires --scenario")
	}
	if opts.Latest && opts.RunID != "" {
		return NewExitError(ExitCommandError, "--latest and --run are mutually exclusive")
	}
	kinds, err := parseKinds(opts.Kinds)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --kind", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ErrCodeStore, nil,
			WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer st.Close()

	if opts.RunID == "" && !opts.Latest {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			return formatter.Fail(ErrCodeStore, nil,
				WrapExitError(ExitCommandError, "failed to list runs", err))
		}
		if formatter.JSON() {
			return formatter.Success(TraceResult{Runs: runs})
		}
		writeRuns(cmd.OutOrStdout(), runs)
		return nil
	}

	var run store.Run
	if opts.Latest {
		run, err = st.LatestRun(ctx, opts.Scenario)
	} else {
		run, err = st.ReadRun(ctx, opts.RunID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ErrCodeNotFound, nil,
			WrapExitError(ExitFailure, "no such run", err))
	}
	if err != nil {
		return formatter.Fail(ErrCodeStore, nil,
			WrapExitError(ExitCommandError, "failed to read run", err))
	}

	events, err := st.ReadEvents(ctx, run.ID, kinds...)
	if err != nil {
		return formatter.Fail(ErrCodeStore, nil,
			WrapExitError(ExitCommandError, "failed to read events", err))
	}

	if formatter.JSON() {
		return formatter.Success(TraceResult{Run: &run, Events: events})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s, %s, %d events)\n", run.ID, run.Scenario, run.Status, run.EventCount)
	fmt.Fprintf(w, "Trace hash: %s\n", run.TraceHash)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)
	writeTrace(w, events)
	return nil
}

func parseKinds(names []string) ([]trace.Kind, error) {
	valid := []trace.Kind{
		trace.KindBind, trace.KindInit, trace.KindUpdate,
		trace.KindChildrenComplete, trace.KindDescendantsComplete,
		trace.KindDispose, trace.KindError,
	}
	kinds := make([]trace.Kind, 0, len(names))
	for _, name := range names {
		k := trace.Kind(strings.TrimSpace(name))
		found := false
		for _, v := range valid {
			if k == v {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown event kind %q", name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func writeRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tSCENARIO\tSTATUS\tEVENTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", r.Seq, r.ID, r.Scenario, r.Status, r.EventCount)
	}
	tw.Flush()
}

// writeTrace prints one line per event: seq, kind, node, then binding and
// detail when present.
func writeTrace(w io.Writer, events []trace.Event) {
	for _, ev := range events {
		line := fmt.Sprintf("[%d] %s %s", ev.Seq, ev.Kind, ev.Node)
		if ev.Binding != "" {
			line += " " + ev.Binding
		}
		if ev.Detail != "" {
			line += " (" + ev.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}
