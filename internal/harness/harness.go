package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/handlers"
	"github.com/roach88/bindery/internal/model"
	"github.com/roach88/bindery/internal/provider"
	"github.com/roach88/bindery/internal/reactive"
	"github.com/roach88/bindery/internal/store"
	"github.com/roach88/bindery/internal/trace"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	store  *store.Store
	ids    trace.RunIDGenerator
}

// WithLogger sets the logger handed to the engine and provider. Runs are
// silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStore records each run, with its trace, in st.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithRunIDs sets the generator for stored run ids. Defaults to UUIDv7.
func WithRunIDs(g trace.RunIDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// harness holds the live state of one scenario run.
type harness struct {
	cfg    *config
	engine *binding.Engine
	model  *model.Model
	doc    *html.Node
	late   []error
}

// Run binds a scenario's document, applies its steps, and checks its
// expectations and assertions.
//
// Every run gets a fresh reactive runtime, engine and recorder, so runs
// are independent and their traces deterministic. Failed expectations
// are reported in the Result; the error return is for runs that could
// not be carried out at all.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    trace.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	doc, err := dom.Parse(sc.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	rt := reactive.NewRuntime()
	rec := trace.NewRecorder()
	registry := binding.NewRegistry()
	handlers.Register(registry)

	popts := []provider.Option{provider.WithLogger(cfg.logger), provider.WithEvalContext(ctx)}
	if sc.Interpolation {
		popts = append(popts, provider.WithInterpolation())
	}

	h := &harness{cfg: cfg, model: model.New(rt, sc.Model), doc: doc}
	h.engine = binding.New(rt, provider.New(popts...), registry,
		binding.WithLogger(cfg.logger),
		binding.WithSink(rec),
		binding.WithErrorHandler(func(err error) { h.late = append(h.late, err) }),
	)

	result := NewResult()
	applyErr := h.engine.ApplyBindings(h.model.Data(), doc, nil)
	h.check("apply", sc.Expect, applyErr, result)
	if applyErr == nil {
		h.runSteps(sc.Steps, result)
	}

	result.Trace = rec.Events()
	result.HTML = h.html()
	for _, msg := range EvaluateAssertions(result.Trace, sc.Assertions) {
		result.AddError(msg)
	}

	hash, err := trace.Hash(result.Trace)
	if err != nil {
		return nil, err
	}
	result.TraceHash = hash

	cfg.logger.Info("scenario completed",
		"scenario", sc.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)

	if cfg.store != nil {
		if err := h.record(ctx, sc, result, applyErr); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *harness) runSteps(steps []Step, result *Result) {
	for i, step := range steps {
		h.late = nil
		label := fmt.Sprintf("steps[%d]", i)
		if err := h.model.Apply(step.Set); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", label, err))
			continue
		}
		h.check(label, step.Expect, errors.Join(h.late...), result)
		h.cfg.logger.Debug("step applied", "step", i, "fields", len(step.Set))
	}
}

// check compares the outcome of one phase with its expectation.
func (h *harness) check(label string, exp Expect, err error, result *Result) {
	switch {
	case exp.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected an error containing %q, got none", label, exp.Error))
	case exp.Error != "" && !strings.Contains(err.Error(), exp.Error):
		result.AddError(fmt.Sprintf("%s: expected an error containing %q, got: %v", label, exp.Error, err))
	case exp.Error == "" && err != nil:
		result.AddError(fmt.Sprintf("%s: %v", label, err))
	}

	if exp.HTML == "" {
		return
	}
	want := strings.TrimSpace(exp.HTML)
	if got := strings.TrimSpace(h.html()); got != want {
		result.AddError(fmt.Sprintf("%s: html mismatch\n  Expected: %s\n  Actual: %s", label, want, got))
	}
}

func (h *harness) html() string {
	body := dom.Body(h.doc)
	if body == nil {
		return ""
	}
	return dom.InnerHTML(body)
}

func (h *harness) record(ctx context.Context, sc *Scenario, result *Result, applyErr error) error {
	run := store.Run{
		ID:       h.cfg.ids.Generate(),
		Scenario: sc.Name,
		Status:   store.StatusPass,
	}
	switch {
	case applyErr != nil && sc.Expect.Error == "":
		run.Status = store.StatusError
		run.Error = applyErr.Error()
	case !result.Pass:
		run.Status = store.StatusFail
		run.Error = result.Errors[0]
	}

	stored, err := h.cfg.store.WriteRun(ctx, run, result.Trace)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	result.RunID = stored.ID
	return nil
}
