package binding

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/trace"
)

// Event is a binding lifecycle signal.
type Event string

const (
	// ChildrenComplete fires when a node's children finished their
	// synchronous binding pass.
	ChildrenComplete Event = "childrenComplete"

	// DescendantsComplete fires when a node's whole subtree, including
	// regions that render asynchronously, finished binding. Only nodes
	// that started async tracking emit it.
	DescendantsComplete Event = "descendantsComplete"
)

// infoKey stores the *bindingInfo of bound nodes.
var infoKey = dom.NewKey("binding.info")

// bindingInfo is the per-node record kept in the side table.
type bindingInfo struct {
	alreadyBound bool
	context      *Context
	notified     map[Event]bool
	listeners    []*EventSubscription

	// async is the active completion record. asyncStarted distinguishes a
	// node whose record already completed from one that never had one.
	async        *asyncContext
	asyncStarted bool
}

// EventSubscription is returned by Subscribe.
type EventSubscription struct {
	info     *bindingInfo
	event    Event
	fn       func(*html.Node)
	disposed bool
}

// Dispose stops further deliveries.
func (s *EventSubscription) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	for i, l := range s.info.listeners {
		if l == s {
			s.info.listeners = append(s.info.listeners[:i], s.info.listeners[i+1:]...)
			return
		}
	}
}

// SubscribeOption configures Subscribe.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	immediate bool
}

// NotifyImmediately also calls the callback right away when the event has
// already fired at least once for the node.
func NotifyImmediately() SubscribeOption {
	return func(o *subscribeOptions) {
		o.immediate = true
	}
}

func (e *Engine) info(n *html.Node, create bool) *bindingInfo {
	if !create {
		v, ok := e.table.Get(n, infoKey)
		if !ok {
			return nil
		}
		return v.(*bindingInfo)
	}
	return e.table.GetOrSet(n, infoKey, func() any {
		return &bindingInfo{notified: make(map[Event]bool)}
	}).(*bindingInfo)
}

// Subscribe registers fn for event on n.
func (e *Engine) Subscribe(n *html.Node, event Event, fn func(*html.Node), opts ...SubscribeOption) *EventSubscription {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	info := e.info(n, true)
	sub := &EventSubscription{info: info, event: event, fn: fn}
	info.listeners = append(info.listeners, sub)
	if o.immediate && info.notified[event] {
		e.rt.Ignore(func() { fn(n) })
	}
	return sub
}

func (info *bindingInfo) hasListeners(event Event) bool {
	for _, l := range info.listeners {
		if l.event == event {
			return true
		}
	}
	return false
}

// notify delivers event for n and drives async completion on
// children-complete. A panicking listener aborts delivery with a handler
// error.
func (e *Engine) notify(n *html.Node, event Event) (err error) {
	info := e.info(n, false)
	if info == nil {
		return nil
	}
	info.notified[event] = true

	kind := trace.KindChildrenComplete
	if event == DescendantsComplete {
		kind = trace.KindDescendantsComplete
	}
	e.emit(kind, n, "", "")

	listeners := append([]*EventSubscription(nil), info.listeners...)
	for _, l := range listeners {
		if l.disposed || l.event != event {
			continue
		}
		if err := e.deliver(l, n); err != nil {
			return handlerError(n, string(event), "", err)
		}
	}

	if event != ChildrenComplete {
		return nil
	}
	if info.async != nil {
		return info.async.completeChildren()
	}
	if !info.asyncStarted && info.hasListeners(DescendantsComplete) {
		return &Error{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("%s event not supported for bindings on this node", DescendantsComplete),
			Node:    n,
		}
	}
	return nil
}

func (e *Engine) deliver(l *EventSubscription, n *html.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	e.rt.Ignore(func() { l.fn(n) })
	return nil
}

// callChildrenComplete invokes a childrenComplete binding value.
func callChildrenComplete(cb any, nodes []*html.Node, data any) error {
	switch fn := cb.(type) {
	case nil:
	case func([]*html.Node, any):
		fn(nodes, data)
	case func([]*html.Node):
		fn(nodes)
	case func():
		fn()
	default:
		return fmt.Errorf("%s value must be a function, got %T", ChildrenComplete, cb)
	}
	return nil
}

// callDescendantsComplete invokes a descendantsComplete binding value.
func callDescendantsComplete(cb any, n *html.Node) error {
	switch fn := cb.(type) {
	case nil:
	case func(*html.Node):
		fn(n)
	case func():
		fn()
	default:
		return fmt.Errorf("%s value must be a function, got %T", DescendantsComplete, cb)
	}
	return nil
}
