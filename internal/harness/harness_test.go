package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/store"
	"github.com/roach88/bindery/internal/trace"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarios(scenarioDir, "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)

			require.NoError(t, AssertGolden(t, filepath.Join(scenarioDir, "golden"), sc, result))
		})
	}
}

func TestRun_HTMLMismatch(t *testing.T) {
	sc := &Scenario{
		Name:     "mismatch",
		Document: `<b data-bind="text: n"></b>`,
		Model:    map[string]any{"n": 1},
		Expect:   Expect{HTML: `<b data-bind="text: n">2</b>`},
	}
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "apply: html mismatch")
	assert.Equal(t, `<b data-bind="text: n">1</b>`, result.HTML)
}

func TestRun_UnexpectedError(t *testing.T) {
	sc := &Scenario{
		Name:     "broken",
		Document: `<b data-bind="text: nope()"></b>`,
	}
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "apply: "), result.Errors[0])
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	sc := &Scenario{
		Name:     "fine",
		Document: `<b data-bind="text: n"></b>`,
		Model:    map[string]any{"n": "x"},
		Expect:   Expect{Error: "boom"},
	}
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, []string{`apply: expected an error containing "boom", got none`}, result.Errors)
}

func TestRun_StepErrors(t *testing.T) {
	sc := &Scenario{
		Name:     "steps",
		Document: `<b data-bind="attr: a"></b>`,
		Model:    map[string]any{"a": map[string]any{"title": "t"}},
		Steps: []Step{
			{Set: map[string]any{"missing": 1}},
			{Set: map[string]any{"a.title": "u"}, Expect: Expect{HTML: `<b data-bind="attr: a" title="u"></b>`}},
		},
	}
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `steps[0]: no view-model field "missing"`)
}

func TestRun_LateErrorsBelongToTheirStep(t *testing.T) {
	sc := &Scenario{
		Name:     "late",
		Document: `<b data-bind="attr: a"></b>`,
		Model:    map[string]any{"a": nil},
		Steps: []Step{
			{Set: map[string]any{"a": "oops"}, Expect: Expect{Error: "attr binding expects a map"}},
			{Set: map[string]any{"a": map[string]any{"title": "t"}}, Expect: Expect{HTML: `<b data-bind="attr: a" title="t"></b>`}},
			{Set: map[string]any{"a": "again"}},
		},
	}
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "steps[2]: "), result.Errors[0])
	assert.Contains(t, result.Errors[0], "attr binding expects a map, got string")
	assert.Len(t, trace.Filter(result.Trace, trace.KindError), 2)
}

func TestRun_ContextRebuildErrors(t *testing.T) {
	doc := `<div data-bind="using: [10, 20][idx()]"><span data-bind="text: $data"></span></div>`
	sc := &Scenario{
		Name:     "rebuild",
		Document: doc,
		Model:    map[string]any{"idx": 0},
		Expect:   Expect{HTML: `<div data-bind="using: [10, 20][idx()]"><span data-bind="text: $data">10</span></div>`},
		Steps: []Step{
			{Set: map[string]any{"idx": 5}, Expect: Expect{Error: "index out of range"}},
			{Set: map[string]any{"idx": 1}, Expect: Expect{HTML: `<div data-bind="using: [10, 20][idx()]"><span data-bind="text: $data">20</span></div>`}},
			{Set: map[string]any{"idx": 7}},
		},
	}

	var result *Result
	require.NotPanics(t, func() {
		var err error
		result, err = Run(context.Background(), sc)
		require.NoError(t, err)
	})

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "steps[2]: "), result.Errors[0])
	assert.Contains(t, result.Errors[0], "index out of range")
	assert.Len(t, trace.Filter(result.Trace, trace.KindError), 2)
}

func TestRun_EmptyDocument(t *testing.T) {
	result, err := Run(context.Background(), &Scenario{Name: "empty", Document: " "})
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, []trace.Event{{Seq: 1, Kind: trace.KindChildrenComplete, Node: "html[0]>body[0]"}}, result.Trace)
}

func TestRun_RecordsToStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	ids := trace.NewFixedGenerator("run-1", "run-2")
	for _, file := range []string{"hello.yaml", "failing.yaml"} {
		sc, err := LoadScenario(filepath.Join(scenarioDir, file))
		require.NoError(t, err)
		_, err = Run(ctx, sc, WithStore(st), WithRunIDs(ids))
		require.NoError(t, err)
	}

	run, err := st.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", run.Scenario)
	assert.Equal(t, store.StatusPass, run.Status)
	assert.Equal(t, 5, run.EventCount)

	events, err := st.ReadEvents(ctx, "run-1", trace.KindUpdate)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	failing, err := st.LatestRun(ctx, "failing")
	require.NoError(t, err)
	assert.Equal(t, "run-2", failing.ID)
	assert.Equal(t, store.StatusPass, failing.Status, "the error was expected")
}

func TestRun_RecordsFailures(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	sc := &Scenario{Name: "broken", Document: `<b data-bind="text: nope()"></b>`}
	result, err := Run(ctx, sc, WithStore(st), WithRunIDs(trace.NewFixedGenerator("r1")))
	require.NoError(t, err)
	assert.Equal(t, "r1", result.RunID)

	run, err := st.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, run.Status)
	assert.Contains(t, run.Error, "unable to process binding")
	assert.Equal(t, result.TraceHash, run.TraceHash)

	sc = &Scenario{Name: "wrong", Document: `<p></p>`, Expect: Expect{HTML: "<p>x</p>"}}
	_, err = Run(ctx, sc, WithStore(st), WithRunIDs(trace.NewFixedGenerator("r2")))
	require.NoError(t, err)
	run, err = st.ReadRun(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFail, run.Status)
	assert.Contains(t, run.Error, "html mismatch")
}
