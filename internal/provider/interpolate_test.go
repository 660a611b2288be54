package provider

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/reactive"
)

func TestPreprocessNode(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  string
		nodes int
	}{
		{"middle", `<p>Hello {{ name }}!</p>`, `<p>Hello <!-- ko text: name --><!-- /ko -->!</p>`, 4},
		{"whole", `<p>{{name}}</p>`, `<p><!-- ko text: name --><!-- /ko --></p>`, 2},
		{"two", `<p>{{ a }} and {{ b }}</p>`,
			`<p><!-- ko text: a --><!-- /ko --> and <!-- ko text: b --><!-- /ko --></p>`, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(WithInterpolation())
			el := parseNode(t, tt.src)

			out, err := p.PreprocessNode(el.FirstChild)
			require.NoError(t, err)
			assert.Len(t, out, tt.nodes)
			assert.Equal(t, tt.want, dom.Render(el))
		})
	}
}

func TestPreprocessNode_LeavesOthersAlone(t *testing.T) {
	p := New(WithInterpolation())

	plain := parseNode(t, `<p>no braces</p>`)
	out, err := p.PreprocessNode(plain.FirstChild)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = p.PreprocessNode(plain)
	require.NoError(t, err)
	assert.Nil(t, out, "elements are not rewritten")

	area := parseNode(t, `<textarea>{{ raw }}</textarea>`)
	out, err = p.PreprocessNode(area.FirstChild)
	require.NoError(t, err)
	assert.Nil(t, out)

	off := New()
	el := parseNode(t, `<p>{{ x }}</p>`)
	out, err = off.PreprocessNode(el.FirstChild)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestPreprocessNode_Errors(t *testing.T) {
	p := New(WithInterpolation())

	for _, src := range []string{`<p>{{ open</p>`, `<p>{{ }}</p>`} {
		el := parseNode(t, src)
		_, err := p.PreprocessNode(el.FirstChild)
		assert.Error(t, err, src)
	}
}

// textHandler is a minimal text binding for wiring tests.
func textHandler(r *binding.Registry) {
	r.Register("text", binding.Handler{
		AllowVirtual: true,
		Init: func(a *binding.Args) (binding.InitResult, error) {
			return binding.InitResult{ControlsDescendantBindings: true}, nil
		},
		Update: func(a *binding.Args) error {
			v := reactive.Unwrap(a.Value())
			s := ""
			if v != nil {
				s = fmt.Sprint(v)
			}
			if a.Node.Type == html.CommentNode {
				return a.Engine.Tree().SetChildren(a.Node, []*html.Node{dom.NewText(s)})
			}
			for c := a.Node.FirstChild; c != nil; c = a.Node.FirstChild {
				a.Node.RemoveChild(c)
			}
			a.Node.AppendChild(dom.NewText(s))
			return nil
		},
	})
}

func TestProviderDrivesEngine(t *testing.T) {
	rt := reactive.NewRuntime()
	name := rt.NewObservable("Ada")
	handlers := binding.NewRegistry()
	textHandler(handlers)

	e := binding.New(rt, New(WithInterpolation()), handlers)
	doc, err := dom.Parse(`<html><body><h1 data-bind="text: name"></h1><p>Hi {{ name() }}.</p></body></html>`)
	require.NoError(t, err)
	body := dom.Body(doc)

	require.NoError(t, e.ApplyBindings(map[string]any{"name": name}, doc, nil))
	assert.Equal(t, `<h1 data-bind="text: name">Ada</h1><p>Hi <!-- ko text: name() -->Ada<!-- /ko -->.</p>`,
		dom.InnerHTML(body))

	name.Set("Grace")
	assert.Equal(t, `<h1 data-bind="text: name">Grace</h1><p>Hi <!-- ko text: name() -->Grace<!-- /ko -->.</p>`,
		dom.InnerHTML(body))
}
