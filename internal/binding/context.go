package binding

import (
	"sort"

	"github.com/roach88/bindery/internal/reactive"
)

// Context is the scope a binding is evaluated in: the current view-model
// data plus its parents, the root, and any custom properties added by
// ancestors.
//
// IDENTITY: a Context is a stable handle over an immutable snapshot. When
// a reactive context rebuilds because something it read changed, it swaps
// in a new snapshot behind the same handle. Anyone holding the *Context
// sees the new values on their next read without re-fetching it.
//
// A context whose construction read nothing reactive is static: it never
// rebuilds and carries no computed.
type Context struct {
	rt   *reactive.Runtime
	snap *snapshot
	sub  *reactive.Computed
}

// snapshot holds the values of one build of a Context. Snapshots are never
// modified after the build that produced them returns.
type snapshot struct {
	data          any
	rawData       any
	root          any
	parents       []any
	parentContext *Context
	props         map[string]any
	ancestor      *bindingInfo
	dependency    reactive.Subscribable
}

// Extension is handed to extend callbacks while a context is being built.
// Properties set through it become visible to the context and to every
// context derived from it, unless overridden further down.
type Extension struct {
	snap   *snapshot
	parent *Context
}

// ExtendFunc customizes a context during each build.
type ExtendFunc func(*Extension)

// Set adds or overrides a custom property.
func (x *Extension) Set(name string, v any) {
	x.snap.props[name] = v
}

// Get returns a custom property set so far, including inherited ones.
func (x *Extension) Get(name string) (any, bool) {
	v, ok := x.snap.props[name]
	return v, ok
}

// Data returns the data of the context being built.
func (x *Extension) Data() any {
	return x.snap.data
}

// Parent returns the context the one being built derives from, or nil.
func (x *Extension) Parent() *Context {
	return x.parent
}

func (x *Extension) setAncestor(info *bindingInfo) {
	x.snap.ancestor = info
}

// ContextOption configures how a context is built.
type ContextOption func(*contextOptions)

type contextOptions struct {
	exportDependencies bool
	noChildContext     bool
	dependency         reactive.Subscribable
}

// ExportDependencies builds the context inside the caller's dependency
// scope instead of a computed of its own. The caller becomes responsible
// for rebuilding.
func ExportDependencies() ContextOption {
	return func(o *contextOptions) {
		o.exportDependencies = true
	}
}

// NoChildContext makes DeriveChild with an alias keep the parent's data
// and only add the alias.
func NoChildContext() ContextOption {
	return func(o *contextOptions) {
		o.noChildContext = true
	}
}

// WithDataDependency attaches an extra subscribable that bindings in the
// context re-read whenever they re-resolve, so a change to it rebinds them.
func WithDataDependency(s reactive.Subscribable) ContextOption {
	return func(o *contextOptions) {
		o.dependency = s
	}
}

// NewContext builds a root context. data may be a plain value, a
// subscribable, or a func() any accessor evaluated inside the context's
// dependency scope.
func NewContext(rt *reactive.Runtime, data any, extend ExtendFunc, opts ...ContextOption) *Context {
	return build(rt, data, nil, "", extend, false, collect(opts))
}

func collect(opts []ContextOption) contextOptions {
	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// build constructs a context. With inherit set the data of parent is kept
// and value is ignored.
func build(rt *reactive.Runtime, value any, parent *Context, alias string, extend ExtendFunc, inherit bool, o contextOptions) *Context {
	c := &Context{rt: rt}
	accessor, isFunc := value.(func() any)

	update := func() any {
		var raw any
		if !inherit {
			raw = value
			if isFunc {
				raw = accessor()
			}
		}
		data := reactive.Unwrap(raw)

		s := &snapshot{props: make(map[string]any)}
		if parent != nil {
			ps := parent.current()
			*s = *ps
			s.props = make(map[string]any, len(ps.props))
			for k, v := range ps.props {
				s.props[k] = v
			}
			s.dependency = nil
		} else {
			s.parents = []any{}
			s.root = data
		}

		if !inherit {
			s.rawData = raw
			s.data = data
		}
		if alias != "" {
			s.props[alias] = s.data
		}
		if extend != nil {
			extend(&Extension{snap: s, parent: parent})
		}

		// Cascade parent rebuilds to this context even when nothing above
		// read the parent's data.
		if parent != nil && parent.sub != nil && !rt.DependsOn(parent.sub) {
			parent.sub.Get()
		}
		if o.dependency != nil {
			s.dependency = o.dependency
		}

		c.snap = s
		return s.data
	}

	if o.exportDependencies {
		update()
		return c
	}

	sub := rt.NewComputed(update, reactive.Pure())
	sub.Peek()
	if sub.IsActive() {
		// Custom properties can change while data stays equal.
		sub.SetAlwaysNotify()
		c.sub = sub
	}
	return c
}

// current returns the latest snapshot, rebuilding a stale sleeping
// context first.
func (c *Context) current() *snapshot {
	if c.sub != nil {
		c.sub.Peek()
	}
	return c.snap
}

// DeriveChild creates a context one level down whose data is data and
// whose parent is c. A non-empty alias also exposes the data under that
// name. With NoChildContext and an alias, the child keeps c's data and
// only gains the alias.
func (c *Context) DeriveChild(data any, alias string, extend ExtendFunc, opts ...ContextOption) *Context {
	o := collect(opts)
	if alias != "" && o.noChildContext {
		accessor, isFunc := data.(func() any)
		return build(c.rt, nil, c, "", func(x *Extension) {
			if extend != nil {
				extend(x)
			}
			v := data
			if isFunc {
				v = accessor()
			}
			x.Set(alias, v)
		}, true, o)
	}
	return build(c.rt, data, c, alias, func(x *Extension) {
		ps := c.current()
		x.snap.parentContext = c
		x.snap.parents = append([]any{ps.data}, ps.parents...)
		if extend != nil {
			extend(x)
		}
	}, false, o)
}

// ExtendWith creates a context with c's data plus the given properties.
func (c *Context) ExtendWith(props map[string]any, opts ...ContextOption) *Context {
	return build(c.rt, nil, c, "", func(x *Extension) {
		for k, v := range props {
			x.Set(k, v)
		}
	}, true, collect(opts))
}

// ExtendWithFunc is ExtendWith with properties produced by fn on every
// build.
func (c *Context) ExtendWithFunc(fn ExtendFunc, opts ...ContextOption) *Context {
	return build(c.rt, nil, c, "", fn, true, collect(opts))
}

// withAncestor returns c extended with an async-tracking back reference.
func (c *Context) withAncestor(info *bindingInfo) *Context {
	return c.ExtendWithFunc(func(x *Extension) {
		x.setAncestor(info)
	})
}

// Runtime returns the reactive runtime the context was built with.
func (c *Context) Runtime() *reactive.Runtime {
	return c.rt
}

// IsReactive reports whether the context rebuilds when its dependencies
// change.
func (c *Context) IsReactive() bool {
	return c.sub != nil
}

// Data returns the current view-model value, unwrapped ($data).
func (c *Context) Data() any {
	return c.current().data
}

// RawData returns the value before unwrapping, possibly a subscribable
// ($rawData).
func (c *Context) RawData() any {
	return c.current().rawData
}

// Root returns the data of the outermost context ($root).
func (c *Context) Root() any {
	return c.current().root
}

// Parent returns the data of the nearest ancestor ($parent), or nil for a
// root context.
func (c *Context) Parent() any {
	ps := c.current().parents
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// Parents returns the ancestor data chain, nearest first ($parents).
func (c *Context) Parents() []any {
	ps := c.current().parents
	out := make([]any, len(ps))
	copy(out, ps)
	return out
}

// ParentContext returns the context c was derived from ($parentContext).
func (c *Context) ParentContext() *Context {
	return c.current().parentContext
}

// Get returns a custom or alias property.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.current().props[name]
	return v, ok
}

// Names returns the custom and alias property names, sorted.
func (c *Context) Names() []string {
	props := c.current().props
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a name as seen by a binding expression: the built-in
// $-prefixed names first, then custom properties.
func (c *Context) Lookup(name string) (any, bool) {
	s := c.current()
	switch name {
	case "$data":
		return s.data, true
	case "$rawData":
		return s.rawData, true
	case "$root":
		return s.root, true
	case "$parent":
		if len(s.parents) == 0 {
			return nil, true
		}
		return s.parents[0], true
	case "$parents":
		return c.Parents(), true
	case "$parentContext":
		return s.parentContext, true
	case "$context":
		return c, true
	}
	v, ok := s.props[name]
	return v, ok
}

func (c *Context) ancestorInfo() *bindingInfo {
	return c.current().ancestor
}

func (c *Context) dataDependency() reactive.Subscribable {
	return c.current().dependency
}
