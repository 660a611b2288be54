package binding

import (
	"sort"

	"golang.org/x/net/html"
)

// Accessor returns the current value of one binding.
type Accessor func() any

// Provider discovers the bindings declared on a node.
type Provider interface {
	// HasBindings reports whether n declares any bindings. Only consulted
	// for non-element nodes; elements are always processed.
	HasBindings(n *html.Node) bool

	// BindingAccessors returns the declared bindings of n evaluated
	// against ctx, or nil when there are none.
	BindingAccessors(n *html.Node, ctx *Context) (*Accessors, error)
}

// Preprocessor is implemented by providers that rewrite nodes before the
// engine binds them. PreprocessNode returns the nodes that replaced n, or
// nil when n was left alone.
type Preprocessor interface {
	PreprocessNode(n *html.Node) ([]*html.Node, error)
}

// ValueProvider is a provider that returns binding values rather than
// accessors. Wrap one with FromValueProvider.
type ValueProvider interface {
	HasBindings(n *html.Node) bool
	Bindings(n *html.Node, ctx *Context) (map[string]any, error)
}

// FromValueProvider adapts a ValueProvider. Each accessor re-reads the
// provider, so values stay current when the provider reads reactive
// state.
func FromValueProvider(vp ValueProvider) Provider {
	return valueAdapter{vp}
}

type valueAdapter struct {
	vp ValueProvider
}

func (a valueAdapter) HasBindings(n *html.Node) bool {
	return a.vp.HasBindings(n)
}

func (a valueAdapter) BindingAccessors(n *html.Node, ctx *Context) (*Accessors, error) {
	var (
		values map[string]any
		err    error
	)
	ctx.rt.Ignore(func() {
		values, err = a.vp.Bindings(n, ctx)
	})
	if err != nil || values == nil {
		return nil, err
	}
	acc := NewAccessors()
	for _, name := range sortedKeys(values) {
		acc.Add(name, func() any {
			fresh, err := a.vp.Bindings(n, ctx)
			if err != nil {
				panic(err)
			}
			return fresh[name]
		}, "")
	}
	return acc, nil
}

// Accessors is an ordered set of binding accessors. Order is declaration
// order, which only matters where After does not decide.
type Accessors struct {
	order []string
	items map[string]Accessor
	exprs map[string]string
}

// NewAccessors creates an empty set.
func NewAccessors() *Accessors {
	return &Accessors{items: make(map[string]Accessor), exprs: make(map[string]string)}
}

// AccessorsFromMap wraps fixed values, ordered by name.
func AccessorsFromMap(values map[string]any) *Accessors {
	acc := NewAccessors()
	for _, name := range sortedKeys(values) {
		v := values[name]
		acc.Add(name, func() any { return v }, "")
	}
	return acc
}

// Add appends a binding. expr is its source text, used in errors.
// Adding an existing name replaces it in place.
func (a *Accessors) Add(name string, fn Accessor, expr string) *Accessors {
	if _, ok := a.items[name]; !ok {
		a.order = append(a.order, name)
	}
	a.items[name] = fn
	a.exprs[name] = expr
	return a
}

// Names returns binding names in declaration order.
func (a *Accessors) Names() []string {
	return append([]string(nil), a.order...)
}

// Get returns the accessor for name.
func (a *Accessors) Get(name string) (Accessor, bool) {
	fn, ok := a.items[name]
	return fn, ok
}

// Has reports whether name is declared.
func (a *Accessors) Has(name string) bool {
	_, ok := a.items[name]
	return ok
}

// Expression returns the source text of name.
func (a *Accessors) Expression(name string) string {
	return a.exprs[name]
}

// Len returns the number of bindings.
func (a *Accessors) Len() int {
	return len(a.order)
}

// AllBindings lets a handler read the other bindings on its node.
type AllBindings struct {
	current func() *Accessors
}

// Get evaluates the named binding, or returns nil when it is absent.
func (b *AllBindings) Get(name string) any {
	acc := b.current()
	if acc == nil {
		return nil
	}
	fn, ok := acc.Get(name)
	if !ok {
		return nil
	}
	return fn()
}

// Has reports whether the named binding is present.
func (b *AllBindings) Has(name string) bool {
	acc := b.current()
	return acc != nil && acc.Has(name)
}

// Values evaluates every binding.
func (b *AllBindings) Values() map[string]any {
	acc := b.current()
	out := make(map[string]any)
	if acc == nil {
		return out
	}
	for _, name := range acc.order {
		out[name] = acc.items[name]()
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
