package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/harness"
	"github.com/roach88/bindery/internal/model"
	"github.com/roach88/bindery/internal/reactive"
	"github.com/roach88/bindery/internal/store"
	"github.com/roach88/bindery/internal/trace"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	ModelFile   string
	Set         []string
	Interpolate bool
	Trace       bool
	DBPath      string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <document.html>",
		Short: "Apply bindings to a document and print the result",
		Long: `Parse an HTML document, bind it to a view-model and print the
bound body.

The view-model is read from a CUE, JSON or YAML file. --set overrides a
field before binding; values are parsed as YAML scalars.

Examples:
  bindery render page.html --model vm.cue
  bindery render page.html --model vm.yaml --set user.name=Ada --trace
  bindery render page.html --model vm.json --db traces.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ModelFile, "model", "m", "", "view-model file (.cue, .json, .yaml)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a view-model field (path=value)")
	cmd.Flags().BoolVar(&opts.Interpolate, "interpolate", false, "expand {{ expr }} text interpolation")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the binding trace")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the run in this trace database")

	return cmd
}

// RenderResult is the JSON output of the render command.
type RenderResult struct {
	Document  string        `json:"document"`
	HTML      string        `json:"html"`
	RunID     string        `json:"run_id,omitempty"`
	TraceHash string        `json:"trace_hash"`
	Trace     []trace.Event `json:"trace,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
}

func runRender(cmd *cobra.Command, opts *RenderOptions, docPath string) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	src, err := os.ReadFile(docPath)
	if err != nil {
		return formatter.Fail(ErrCodeNotFound, nil,
			WrapExitError(ExitCommandError, "failed to read document", err))
	}

	vm, err := loadViewModel(opts.ModelFile, opts.Set)
	if err != nil {
		return formatter.Fail(ErrCodeModel, nil,
			WrapExitError(ExitCommandError, "failed to load view-model", err))
	}

	sc := &harness.Scenario{
		Name:          strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath)),
		Description:   "render " + docPath,
		Document:      string(src),
		Model:         vm,
		Interpolation: opts.Interpolate,
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return formatter.Fail(ErrCodeStore, nil,
				WrapExitError(ExitCommandError, "failed to open trace database", err))
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	result, err := harness.Run(cmd.Context(), sc, runOpts...)
	if err != nil {
		return formatter.Fail(ErrCodeParse, nil,
			WrapExitError(ExitCommandError, "failed to render document", err))
	}

	out := RenderResult{
		Document:  docPath,
		HTML:      result.HTML,
		RunID:     result.RunID,
		TraceHash: result.TraceHash,
		Errors:    result.Errors,
	}
	if opts.Trace {
		out.Trace = result.Trace
	}

	if !result.Pass {
		return formatter.Fail(ErrCodeApply, out,
			NewExitError(ExitFailure, strings.Join(result.Errors, "; ")))
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, result.HTML)
	if opts.Trace {
		fmt.Fprintln(w)
		writeTrace(w, result.Trace)
	}
	formatter.VerboseLog("trace hash: %s", result.TraceHash)
	if result.RunID != "" {
		formatter.VerboseLog("recorded run: %s", result.RunID)
	}
	return nil
}

// loadViewModel reads a view-model file, if any, and applies path=value
// overrides to it.
func loadViewModel(path string, sets []string) (map[string]any, error) {
	data := map[string]any{}
	if path != "" {
		loaded, err := model.Load(path)
		if err != nil {
			return nil, err
		}
		data = loaded
	}
	if len(sets) == 0 {
		return data, nil
	}

	overrides := make(map[string]any, len(sets))
	for _, s := range sets {
		p, v, err := model.ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		overrides[p] = v
	}
	m := model.New(reactive.NewRuntime(), data)
	if err := m.Apply(overrides); err != nil {
		return nil, err
	}
	return m.Snapshot(), nil
}
