package binding

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/reactive"
	"github.com/roach88/bindery/internal/trace"
	"github.com/roach88/bindery/internal/virtual"
)

// noRecurse lists elements whose content is never bound: it is text, or a
// template fragment some handler manages itself.
var noRecurse = map[string]bool{
	"script":   true,
	"textarea": true,
	"template": true,
}

// Engine applies bindings to a document.
//
// CRITICAL: an Engine is single-threaded. ApplyBindings, every reactive
// rerun it sets up, and node removal must all happen on the goroutine that
// owns the Engine's reactive Runtime.
type Engine struct {
	rt       *reactive.Runtime
	table    *dom.Table
	tree     *virtual.Tree
	provider Provider
	handlers *Registry
	logger   *slog.Logger
	onError  func(error)
	sink     trace.Sink
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithErrorHandler receives errors raised by reactive reruns after the
// ApplyBindings call that set them up has returned. Default: log at Error.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// WithSink streams trace events to s.
func WithSink(s trace.Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithTable shares a side table with other components. Default: a fresh
// table.
func WithTable(t *dom.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// New creates an Engine.
func New(rt *reactive.Runtime, provider Provider, handlers *Registry, opts ...Option) *Engine {
	e := &Engine{
		rt:       rt,
		provider: provider,
		handlers: handlers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.table == nil {
		e.table = dom.NewTable()
	}
	e.tree = virtual.NewTree(e.table)
	return e
}

// Runtime returns the reactive runtime.
func (e *Engine) Runtime() *reactive.Runtime { return e.rt }

// Table returns the side table.
func (e *Engine) Table() *dom.Table { return e.table }

// Tree returns the virtual tree adapter sharing the engine's table.
func (e *Engine) Tree() *virtual.Tree { return e.tree }

// Handlers returns the handler registry.
func (e *Engine) Handlers() *Registry { return e.handlers }

// NodeResult reports what ApplyBindingAccessorsToNode decided about a
// node's children.
type NodeResult struct {
	// BindDescendants is false when a handler took control of the
	// children.
	BindDescendants bool

	// DescendantContext is the context children should be bound with, or
	// nil when BindDescendants is false.
	DescendantContext *Context
}

// contextFrom returns v when it already is a context, or builds a root
// context over it.
func (e *Engine) contextFrom(v any, extend ExtendFunc) *Context {
	if ctx, ok := v.(*Context); ok {
		return ctx
	}
	return NewContext(e.rt, v, extend)
}

// ApplyBindings binds root and everything beneath it against a view-model
// or an existing context. root is an element, a start marker or a
// document, whose body is bound.
func (e *Engine) ApplyBindings(vmOrCtx any, root *html.Node, extend ExtendFunc) error {
	if root == nil {
		return &Error{Code: ErrCodeInvalidRoot, Message: "root node is nil"}
	}
	if root.Type == html.DocumentNode {
		body := dom.Body(root)
		if body == nil {
			return &Error{Code: ErrCodeInvalidRoot, Message: "document has no body"}
		}
		root = body
	}
	if root.Type != html.ElementNode && root.Type != html.CommentNode {
		return &Error{Code: ErrCodeInvalidRoot, Message: fmt.Sprintf("root must be an element, a comment or a document, got %s", dom.Path(root)), Node: root}
	}
	e.logger.Debug("applying bindings", "root", dom.Path(root))
	return e.applyToNodeAndDescendants(e.contextFrom(vmOrCtx, extend), root)
}

// ApplyBindingsToDescendants binds the children of root, which must be an
// element or a virtual element. root itself is not bound.
func (e *Engine) ApplyBindingsToDescendants(vmOrCtx any, root *html.Node) error {
	if root == nil {
		return &Error{Code: ErrCodeInvalidRoot, Message: "root node is nil"}
	}
	if root.Type != html.ElementNode && root.Type != html.CommentNode {
		return nil
	}
	return e.applyToDescendants(e.contextFrom(vmOrCtx, nil), root)
}

// ApplyBindingsToNode binds n with a fixed set of binding values. Unlike
// provider-discovered bindings this may be repeated on the same node.
func (e *Engine) ApplyBindingsToNode(n *html.Node, bindings map[string]any, vmOrCtx any) (*NodeResult, error) {
	return e.ApplyBindingAccessorsToNode(n, AccessorsFromMap(bindings), vmOrCtx)
}

// ApplyBindingAccessorsToNode binds n with an explicit accessor set.
// Children are not bound; the result says whether and how they should be.
func (e *Engine) ApplyBindingAccessorsToNode(n *html.Node, bindings *Accessors, vmOrCtx any) (*NodeResult, error) {
	return e.applyToNode(n, bindings, e.contextFrom(vmOrCtx, nil))
}

// ContextFor returns the context n was bound with. Only elements and
// marker comments carry contexts.
func (e *Engine) ContextFor(n *html.Node) *Context {
	if n == nil || (n.Type != html.ElementNode && n.Type != html.CommentNode) {
		return nil
	}
	info := e.info(n, false)
	if info == nil {
		return nil
	}
	return info.context
}

// DataFor returns the data n was bound with.
func (e *Engine) DataFor(n *html.Node) (any, bool) {
	ctx := e.ContextFor(n)
	if ctx == nil {
		return nil, false
	}
	return ctx.Data(), true
}

// CleanNode runs the disposal callbacks of n and its subtree, tearing down
// their reactive updates.
func (e *Engine) CleanNode(n *html.Node) {
	e.emit(trace.KindDispose, n, "", "")
	e.table.CleanNode(n)
}

// RemoveNode cleans n and detaches it.
func (e *Engine) RemoveNode(n *html.Node) {
	e.CleanNode(n)
	dom.Detach(n)
}

func (e *Engine) applyToNodeAndDescendants(ctx *Context, n *html.Node) error {
	descendantCtx := ctx
	isElement := n.Type == html.ElementNode
	if isElement {
		e.tree.Normalize(n)
	}
	if isElement || e.provider.HasBindings(n) {
		res, err := e.applyToNode(n, nil, ctx)
		if err != nil {
			return err
		}
		descendantCtx = res.DescendantContext
	}
	if descendantCtx != nil && !noRecurse[dom.TagName(n)] {
		return e.applyToDescendants(descendantCtx, n)
	}
	return nil
}

func (e *Engine) applyToDescendants(ctx *Context, parent *html.Node) error {
	first, err := e.tree.FirstChild(parent)
	if err != nil {
		return err
	}
	if first != nil {
		if pp, ok := e.provider.(Preprocessor); ok {
			for cur := first; cur != nil; {
				next, err := e.tree.NextSibling(cur)
				if err != nil {
					return err
				}
				if _, err := pp.PreprocessNode(cur); err != nil {
					return fmt.Errorf("preprocess %s: %w", dom.Path(cur), err)
				}
				cur = next
			}
			if first, err = e.tree.FirstChild(parent); err != nil {
				return err
			}
		}

		// Capture the level before binding any of it, so bindings that
		// move or remove nodes cannot make the walk skip or revisit one.
		var siblings []*html.Node
		for cur := first; cur != nil; {
			siblings = append(siblings, cur)
			if cur, err = e.tree.NextSibling(cur); err != nil {
				return err
			}
		}
		for _, child := range siblings {
			if err := e.applyToNodeAndDescendants(ctx, child); err != nil {
				return err
			}
		}
	}
	return e.notify(parent, ChildrenComplete)
}

// applyToNode binds one node. source is nil for provider-discovered
// bindings.
func (e *Engine) applyToNode(n *html.Node, source *Accessors, ctx *Context) (*NodeResult, error) {
	info := e.info(n, true)
	alreadyBound := info.alreadyBound
	if source == nil {
		if alreadyBound {
			return nil, &Error{
				Code:    ErrCodeDoubleBinding,
				Message: "you cannot apply bindings multiple times to the same node",
				Node:    n,
			}
		}
		info.alreadyBound = true
	}
	if !alreadyBound {
		info.context = ctx
	}

	bindings := source
	var updater *reactive.Computed
	if source == nil {
		var resolveErr error
		initial := true
		updater = e.track(n, func() any {
			acc, err := e.resolve(n, ctx)
			if err != nil {
				if initial {
					resolveErr = err
				} else {
					e.report(err)
				}
				return (*Accessors)(nil)
			}
			bindings = acc
			if acc != nil {
				if ctx.sub != nil {
					ctx.sub.Get()
				}
				if dep := ctx.dataDependency(); dep != nil {
					dep.Get()
				}
			}
			return acc
		})
		initial = false
		if resolveErr != nil {
			updater.Dispose()
			return nil, resolveErr
		}
		if bindings == nil || !updater.IsActive() {
			updater.Dispose()
			updater = nil
		}
	}

	descendantCtx := ctx
	if bindings == nil {
		return &NodeResult{BindDescendants: true, DescendantContext: descendantCtx}, nil
	}
	e.emit(trace.KindBind, n, "", fmt.Sprint(bindings.Names()))

	current := func() *Accessors {
		if updater != nil {
			acc, _ := updater.Get().(*Accessors)
			return acc
		}
		return bindings
	}
	valueAccessor := func(name string) Accessor {
		if updater == nil {
			fn, _ := bindings.Get(name)
			return fn
		}
		return func() any {
			acc := current()
			if acc == nil {
				return nil
			}
			fn, ok := acc.Get(name)
			if !ok {
				return nil
			}
			return fn()
		}
	}
	all := &AllBindings{current: current}

	if bindings.Has(string(ChildrenComplete)) {
		value := valueAccessor(string(ChildrenComplete))
		e.Subscribe(n, ChildrenComplete, func(*html.Node) {
			nodes, err := e.tree.ChildNodes(n)
			if err != nil {
				panic(err)
			}
			if len(nodes) == 0 {
				return
			}
			data, _ := e.DataFor(nodes[0])
			if err := callChildrenComplete(value(), nodes, data); err != nil {
				panic(err)
			}
		})
	}
	if bindings.Has(string(DescendantsComplete)) {
		descendantCtx = e.StartPossiblyAsyncContentBinding(n, ctx)
		value := valueAccessor(string(DescendantsComplete))
		e.Subscribe(n, DescendantsComplete, func(*html.Node) {
			first, err := e.tree.FirstChild(n)
			if err != nil {
				panic(err)
			}
			if first == nil {
				return
			}
			if err := callDescendantsComplete(value(), n); err != nil {
				panic(err)
			}
		})
	}

	ordered, err := e.sortBindings(n, bindings)
	if err != nil {
		return nil, err
	}

	controlledBy := ""
	for _, b := range ordered {
		expr := bindings.Expression(b.name)
		if n.Type == html.CommentNode && !b.handler.AllowVirtual && !e.tree.Allowed(b.name) {
			return nil, &Error{
				Code:    ErrCodeUnsupported,
				Message: fmt.Sprintf("the binding %q cannot be used with virtual elements", b.name),
				Binding: b.name,
				Node:    n,
			}
		}

		bindCtx := descendantCtx
		args := func() *Args {
			return &Args{
				Node:       n,
				Value:      valueAccessor(b.name),
				All:        all,
				Data:       bindCtx.Data(),
				Context:    bindCtx,
				Engine:     e,
				Name:       b.name,
				Expression: expr,
			}
		}

		if b.handler.Init != nil {
			e.emit(trace.KindInit, n, b.name, expr)
			var (
				res     InitResult
				initErr error
			)
			e.rt.Ignore(func() {
				res, initErr = callInit(b.handler.Init, args())
			})
			if initErr != nil {
				return nil, handlerError(n, b.name, expr, initErr)
			}
			if res.ControlsDescendantBindings {
				if controlledBy != "" {
					return nil, &Error{
						Code: ErrCodeConflict,
						Message: fmt.Sprintf("multiple bindings (%s and %s) are trying to control descendant bindings of the same node",
							controlledBy, b.name),
						Binding: b.name,
						Node:    n,
					}
				}
				controlledBy = b.name
			}
		}

		if b.handler.Update != nil {
			if err := e.startUpdate(n, b.name, expr, b.handler.Update, args); err != nil {
				return nil, handlerError(n, b.name, expr, err)
			}
		}
	}

	if controlledBy != "" {
		return &NodeResult{BindDescendants: false}, nil
	}
	return &NodeResult{BindDescendants: true, DescendantContext: descendantCtx}, nil
}

// resolve asks the provider for the bindings of n. Provider panics become
// errors.
func (e *Engine) resolve(n *html.Node, ctx *Context) (acc *Accessors, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Code: ErrCodeHandler, Message: "unable to parse bindings", Node: n, Err: recovered(r)}
		}
	}()
	acc, err = e.provider.BindingAccessors(n, ctx)
	if err != nil {
		return nil, &Error{Code: ErrCodeHandler, Message: "unable to parse bindings", Node: n, Err: err}
	}
	return acc, nil
}

// startUpdate runs update inside its own computed, torn down with n. The
// error of the first run is returned; errors of later reruns are
// reported through the error handler.
func (e *Engine) startUpdate(n *html.Node, name, expr string, update func(*Args) error, args func() *Args) error {
	var firstErr error
	initial := true
	e.track(n, func() any {
		e.emit(trace.KindUpdate, n, name, expr)
		err := callUpdate(update, args())
		if err != nil {
			if initial {
				firstErr = err
			} else {
				e.report(handlerError(n, name, expr, err))
			}
		}
		return nil
	})
	initial = false
	return firstErr
}

// track creates a computed that is disposed when n is cleaned, or when a
// rerun finds that n, once attached to a document, no longer is.
func (e *Engine) track(n *html.Node, read func() any) *reactive.Computed {
	wasAttached := dom.IsAttached(n)
	c := e.rt.NewComputed(read, reactive.WithDisposeWhen(func() bool {
		if dom.IsAttached(n) {
			wasAttached = true
			return false
		}
		return wasAttached
	}))
	if c.IsActive() {
		id := e.table.AddDisposeCallback(n, func(*html.Node) { c.Dispose() })
		c.OnDispose(func() { e.table.RemoveDisposeCallback(n, id) })
	}
	return c
}

func callInit(fn func(*Args) (InitResult, error), args *Args) (res InitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(args)
}

func callUpdate(fn func(*Args) error, args *Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(args)
}

// report delivers an error that has no caller to return to.
func (e *Engine) report(err error) {
	e.emit(trace.KindError, nil, "", err.Error())
	if e.onError != nil {
		e.onError(err)
		return
	}
	e.logger.Error("binding rerun failed", "error", err)
}

func (e *Engine) emit(kind trace.Kind, n *html.Node, binding, detail string) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(trace.Event{Kind: kind, Node: dom.Path(n), Binding: binding, Detail: detail})
}
