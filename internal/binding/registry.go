package binding

import (
	"sort"

	"golang.org/x/net/html"
)

// Args is what a handler receives on init and on every update.
type Args struct {
	// Node is the element or start marker the binding sits on.
	Node *html.Node

	// Value reads the binding's value. Reading it from Update makes the
	// update re-run when the value changes.
	Value Accessor

	// All gives access to the other bindings on the same node.
	All *AllBindings

	// Data is the context's data at the time of the call.
	Data any

	// Context is the binding context. Bindings that run after a
	// descendantsComplete binding see the context extended for async
	// tracking.
	Context *Context

	// Engine is the engine applying the binding, for handlers that bind
	// descendants themselves.
	Engine *Engine

	// Name and Expression identify the binding being processed.
	Name       string
	Expression string
}

// Report delivers a failure of the handler's own reactive work, raised
// after Init or the first Update returned, to the engine's error handler.
func (a *Args) Report(err error) {
	a.Engine.report(handlerError(a.Node, a.Name, a.Expression, err))
}

// InitResult is returned by Init.
type InitResult struct {
	// ControlsDescendantBindings stops the engine from binding the node's
	// children. The handler takes responsibility for them.
	ControlsDescendantBindings bool
}

// Handler defines one named binding.
type Handler struct {
	// Init runs once, with dependency tracking suppressed.
	Init func(*Args) (InitResult, error)

	// Update runs once after Init and again whenever anything it read
	// changes, until the node is removed.
	Update func(*Args) error

	// After lists bindings that must be initialized before this one when
	// they appear on the same node.
	After []string

	// AllowVirtual permits the binding on comment-marker virtual
	// elements.
	AllowVirtual bool
}

// Registry maps binding names to handlers.
type Registry struct {
	handlers map[string]*Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = &h
}

// Lookup returns the handler for name.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns each handler's After list, keyed by name. Used by
// static analysis of the handler set.
func (r *Registry) Dependencies() map[string][]string {
	out := make(map[string][]string, len(r.handlers))
	for name, h := range r.handlers {
		out[name] = append([]string(nil), h.After...)
	}
	return out
}
