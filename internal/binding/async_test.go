package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/trace"
)

// deferred registers a handler that takes over its node's children and
// binds them only when render is called, the way a handler waiting on
// loaded content would.
func deferred(t *testing.T, h *harness) (render func(id string)) {
	t.Helper()
	pending := make(map[*html.Node]*Context)
	h.handlers.Register("deferred", Handler{
		Init: func(a *Args) (InitResult, error) {
			pending[a.Node] = a.Engine.StartPossiblyAsyncContentBinding(a.Node, a.Context)
			return InitResult{ControlsDescendantBindings: true}, nil
		},
	})
	return func(id string) {
		t.Helper()
		var n *html.Node
		for node := range pending {
			if v, _ := dom.Attr(node, "id"); v == id {
				n = node
			}
		}
		require.NotNil(t, n, "no deferred node %q", id)
		ctx := pending[n]
		delete(pending, n)
		require.NoError(t, h.engine.ApplyBindingsToDescendants(ctx, n))
	}
}

// completions records descendantsComplete callbacks by node id.
type completions []string

func (c *completions) callback() func(*html.Node) {
	return func(n *html.Node) {
		id, _ := dom.Attr(n, "id")
		*c = append(*c, id)
	}
}

const twoDeferred = `<div id="outer" data-bind="descendantsComplete">` +
	`<div id="a" data-bind="deferred"><i></i></div>` +
	`<div id="b" data-bind="deferred"><i></i></div>` +
	`</div>`

func TestAsync_CompletesOnceInEitherOrder(t *testing.T) {
	orders := [][]string{{"a", "b"}, {"b", "a"}}
	for _, order := range orders {
		t.Run(order[0]+order[1], func(t *testing.T) {
			h := newHarness(t, nil)
			var done completions
			h.provider.values = map[string]any{"descendantsComplete": done.callback()}
			render := deferred(t, h)

			body := parseBody(t, twoDeferred)
			require.NoError(t, h.engine.ApplyBindings("vm", body, nil))
			assert.Empty(t, done, "waiting on both regions")

			render(order[0])
			assert.Empty(t, done, "still waiting on one region")

			render(order[1])
			assert.Equal(t, completions{"outer"}, done)

			require.NoError(t, h.engine.CompleteAsync(byID(t, body, "outer")))
			assert.Len(t, done, 1, "fires at most once")
		})
	}
}

func TestAsync_RemovalSatisfiesWait(t *testing.T) {
	h := newHarness(t, nil)
	var done completions
	h.provider.values = map[string]any{"descendantsComplete": done.callback()}
	render := deferred(t, h)

	body := parseBody(t, twoDeferred)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))

	render("a")
	h.engine.RemoveNode(byID(t, body, "b"))

	assert.Equal(t, completions{"outer"}, done)
	assert.Empty(t, h.errs)
}

func TestAsync_NestedRegions(t *testing.T) {
	h := newHarness(t, nil)
	var done completions
	h.provider.values = map[string]any{"descendantsComplete": done.callback()}
	render := deferred(t, h)

	body := parseBody(t, `<div id="outer" data-bind="descendantsComplete">`+
		`<div id="a" data-bind="deferred"><div id="inner" data-bind="deferred"><i></i></div></div>`+
		`</div>`)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))

	render("a")
	assert.Empty(t, done, "a waits for the region it rendered")

	render("inner")
	assert.Equal(t, completions{"outer"}, done)
}

func TestAsync_SynchronousContentCompletesDuringApply(t *testing.T) {
	h := newHarness(t, nil)
	var done completions
	h.provider.values = map[string]any{"descendantsComplete": done.callback()}

	body := parseBody(t, `<div id="outer" data-bind="descendantsComplete"><span></span></div>`)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))

	assert.Equal(t, completions{"outer"}, done)

	events := trace.Filter(h.recorder.Events(), trace.KindDescendantsComplete)
	require.Len(t, events, 1)
	assert.Equal(t, dom.Path(byID(t, body, "outer")), events[0].Node)
}

func TestAsync_EmptyNodeSkipsCallback(t *testing.T) {
	h := newHarness(t, nil)
	var done completions
	h.provider.values = map[string]any{"descendantsComplete": done.callback()}

	body := parseBody(t, `<div id="outer" data-bind="descendantsComplete"></div>`)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))

	assert.Empty(t, done)
	assert.Len(t, trace.Filter(h.recorder.Events(), trace.KindDescendantsComplete), 1,
		"the event itself still fires")
}

func TestAsync_SubscribeNotifyImmediately(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.values = map[string]any{"descendantsComplete": func() {}}

	body := parseBody(t, `<div id="outer" data-bind="descendantsComplete"><span></span></div>`)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))
	outer := byID(t, body, "outer")

	var late, immediate completions
	h.engine.Subscribe(outer, DescendantsComplete, late.callback())
	h.engine.Subscribe(outer, DescendantsComplete, immediate.callback(), NotifyImmediately())

	assert.Empty(t, late)
	assert.Equal(t, completions{"outer"}, immediate)
}

func TestAsync_SubscriptionDispose(t *testing.T) {
	h := newHarness(t, nil)
	render := deferred(t, h)

	body := parseBody(t, `<div id="a" data-bind="deferred"><i></i></div>`)
	require.NoError(t, h.engine.ApplyBindings("vm", body, nil))
	a := byID(t, body, "a")

	var done completions
	sub := h.engine.Subscribe(a, DescendantsComplete, done.callback())
	sub.Dispose()
	sub.Dispose()

	render("a")
	assert.Empty(t, done)
}

func TestAsync_DescendantsCompleteUnsupportedWithoutTracking(t *testing.T) {
	h := newHarness(t, nil)
	body := parseBody(t, `<div id="x"><i></i></div>`)
	x := byID(t, body, "x")

	var done completions
	h.engine.Subscribe(x, DescendantsComplete, done.callback())

	err := h.engine.ApplyBindings("vm", x, nil)
	require.Error(t, err)
	assert.True(t, IsUnsupportedError(err))
	assert.Contains(t, err.Error(), "descendantsComplete event not supported")
	assert.Empty(t, done)
}

func TestAsync_ChildrenCompleteListenerPanicFails(t *testing.T) {
	h := newHarness(t, nil)
	body := parseBody(t, `<div id="x"><i></i></div>`)
	x := byID(t, body, "x")

	h.engine.Subscribe(x, ChildrenComplete, func(*html.Node) { panic("listener broke") })

	err := h.engine.ApplyBindings("vm", x, nil)
	require.Error(t, err)
	assert.True(t, IsHandlerError(err))
	assert.Contains(t, err.Error(), "listener broke")
}
