package provider

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/risor-io/risor"
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/virtual"
)

// Attribute is the element attribute bindings are declared in.
const Attribute = "data-bind"

// Provider reads bindings from data-bind attributes and start markers and
// evaluates their expressions with risor.
//
// Expressions see, as globals:
//   - every field of the context's data when the data is a map
//   - the context's custom properties, aliases included
//   - $data, $rawData, $root, $parent, $parents and $context
//   - globals registered with WithGlobals
//
// Data fields win over properties of the same name. Reactive values are
// exposed as functions: `count()` reads the current value and registers a
// dependency, while a bare `count` hands the reactive value itself to the
// handler.
type Provider struct {
	ctx           context.Context
	logger        *slog.Logger
	globals       map[string]any
	interpolation bool

	mu    sync.Mutex
	cache map[string][]Pair
}

// Option configures a Provider.
type Option func(*Provider)

// WithGlobals makes extra values visible to every expression.
func WithGlobals(g map[string]any) Option {
	return func(p *Provider) {
		maps.Copy(p.globals, g)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithEvalContext sets the context risor evaluations run under. A
// cancelled context makes every later evaluation fail.
func WithEvalContext(ctx context.Context) Option {
	return func(p *Provider) {
		p.ctx = ctx
	}
}

// WithInterpolation enables rewriting of {{ expr }} text into text
// bindings.
func WithInterpolation() Option {
	return func(p *Provider) {
		p.interpolation = true
	}
}

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		ctx:     context.Background(),
		logger:  slog.Default(),
		globals: make(map[string]any),
		cache:   make(map[string][]Pair),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HasBindings reports whether n declares bindings.
func (p *Provider) HasBindings(n *html.Node) bool {
	return source(n) != ""
}

func source(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		v, _ := dom.Attr(n, Attribute)
		return v
	case html.CommentNode:
		return virtual.BindingValue(n)
	}
	return ""
}

// BindingAccessors returns an accessor per declared binding. Parsing
// happens here; evaluation is deferred to each accessor call, which
// panics when the expression fails.
func (p *Provider) BindingAccessors(n *html.Node, ctx *binding.Context) (*binding.Accessors, error) {
	src := source(n)
	if src == "" {
		return nil, nil
	}
	pairs, err := p.parse(src)
	if err != nil {
		return nil, err
	}
	acc := binding.NewAccessors()
	for _, pair := range pairs {
		acc.Add(pair.Name, func() any {
			if pair.Expr == "" {
				return nil
			}
			v, err := p.Eval(pair.Expr, ctx)
			if err != nil {
				panic(err)
			}
			return v
		}, pair.Expr)
	}
	return acc, nil
}

func (p *Provider) parse(src string) ([]Pair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pairs, ok := p.cache[src]; ok {
		return pairs, nil
	}
	pairs, err := ParseBindings(src)
	if err != nil {
		return nil, err
	}
	p.cache[src] = pairs
	p.logger.Debug("parsed bindings", "source", src, "count", len(pairs))
	return pairs, nil
}

// Eval evaluates one expression against ctx.
func (p *Provider) Eval(expr string, ctx *binding.Context) (any, error) {
	conv := newConverter()
	var opts []risor.Option
	for name, v := range p.scope(ctx) {
		opts = append(opts, risor.WithGlobal(name, conv.toObject(v)))
	}
	// parenthesized so a leading { reads as a map literal
	src := "(" + rewriteContextNames(expr) + ")"
	result, err := risor.Eval(p.ctx, src, opts...)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if err := errorValue(result); err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return conv.fromObject(result), nil
}

// scope collects the globals of one evaluation.
func (p *Provider) scope(ctx *binding.Context) map[string]any {
	scope := make(map[string]any, len(p.globals)+8)
	maps.Copy(scope, p.globals)
	for _, name := range []string{"$data", "$rawData", "$root", "$parent", "$parents", "$context"} {
		if v, ok := ctx.Lookup(name); ok {
			scope[globalName(name)] = v
		}
	}
	for _, name := range ctx.Names() {
		if g := globalName(name); isIdentifier(g) {
			v, _ := ctx.Get(name)
			scope[g] = v
		}
	}
	if fields, ok := ctx.Data().(map[string]any); ok {
		for name, v := range fields {
			if isIdentifier(name) {
				scope[name] = v
			}
		}
	}
	return scope
}

var (
	_ binding.Provider     = (*Provider)(nil)
	_ binding.Preprocessor = (*Provider)(nil)
)
