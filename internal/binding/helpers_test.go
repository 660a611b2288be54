package binding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/reactive"
	"github.com/roach88/bindery/internal/trace"
	"github.com/roach88/bindery/internal/virtual"
)

// stubProvider declares the bindings named in an element's data-bind
// attribute, or in a start marker, as a comma separated list of names.
// Each accessor returns values[name], unwrapped, or the context data
// when the name has no value.
type stubProvider struct {
	values map[string]any
	calls  int
}

func (p *stubProvider) HasBindings(n *html.Node) bool {
	return virtual.BindingValue(n) != ""
}

func (p *stubProvider) BindingAccessors(n *html.Node, ctx *Context) (*Accessors, error) {
	p.calls++
	var src string
	switch n.Type {
	case html.ElementNode:
		v, ok := dom.Attr(n, "data-bind")
		if !ok {
			return nil, nil
		}
		src = v
	case html.CommentNode:
		src = virtual.BindingValue(n)
	default:
		return nil, nil
	}
	acc := NewAccessors()
	for _, name := range strings.Split(src, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v, ok := p.values[name]
		acc.Add(name, func() any {
			if ok {
				return reactive.Unwrap(v)
			}
			return ctx.Data()
		}, name)
	}
	return acc, nil
}

type harness struct {
	rt       *reactive.Runtime
	provider *stubProvider
	handlers *Registry
	engine   *Engine
	recorder *trace.Recorder
	errs     []error
}

func newHarness(t *testing.T, values map[string]any) *harness {
	t.Helper()
	h := &harness{
		rt:       reactive.NewRuntime(),
		provider: &stubProvider{values: values},
		handlers: NewRegistry(),
		recorder: trace.NewRecorder(),
	}
	h.engine = New(h.rt, h.provider, h.handlers,
		WithSink(h.recorder),
		WithErrorHandler(func(err error) { h.errs = append(h.errs, err) }),
	)
	return h
}

func parseBody(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := dom.Parse("<html><body>" + src + "</body></html>")
	require.NoError(t, err)
	return dom.Body(doc)
}

// byID finds the element with the given id attribute.
func byID(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	var found *html.Node
	dom.Walk(root, func(n *html.Node) {
		if v, ok := dom.Attr(n, "id"); ok && v == id && found == nil {
			found = n
		}
	})
	require.NotNil(t, found, "no element with id %q", id)
	return found
}

// recordInit registers a handler that appends its name to log on init.
func recordInit(r *Registry, name string, log *[]string, after ...string) {
	r.Register(name, Handler{
		After: after,
		Init: func(*Args) (InitResult, error) {
			*log = append(*log, name)
			return InitResult{}, nil
		},
	})
}
