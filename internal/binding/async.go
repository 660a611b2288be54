package binding

import (
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
)

// asyncContext tracks one node that waits for its descendants before
// firing DescendantsComplete.
//
// INVARIANTS:
//   - ancestor is fixed at creation and never re-parented
//   - the record completes only after childrenDone is set and pending is
//     empty; completing clears info.async and notifies the ancestor
type asyncContext struct {
	engine       *Engine
	node         *html.Node
	info         *bindingInfo
	pending      []*html.Node
	childrenDone bool
	ancestor     *bindingInfo
	disposeID    dom.CallbackID
}

func (e *Engine) newAsyncContext(n *html.Node, info, ancestor *bindingInfo) *asyncContext {
	a := &asyncContext{engine: e, node: n, info: info}
	a.disposeID = e.table.AddDisposeCallback(n, e.disposeAsync)
	if ancestor != nil && ancestor.async != nil {
		ancestor.async.pending = append(ancestor.async.pending, n)
		a.ancestor = ancestor
	}
	return a
}

// disposeAsync treats removal of a still-waiting node as completion so
// its ancestor is not left waiting forever.
func (e *Engine) disposeAsync(n *html.Node) {
	info := e.info(n, false)
	if info == nil || info.async == nil {
		return
	}
	a := info.async
	info.async = nil
	if err := a.notifyAncestor(); err != nil {
		e.report(err)
	}
}

func (a *asyncContext) notifyAncestor() error {
	if a.ancestor != nil && a.ancestor.async != nil {
		return a.ancestor.async.descendantComplete(a.node)
	}
	return nil
}

func (a *asyncContext) descendantComplete(n *html.Node) error {
	if len(a.pending) > 0 && a.pending[0] == n {
		a.pending = a.pending[1:]
	} else {
		for i, p := range a.pending {
			if p == n {
				a.pending = append(a.pending[:i], a.pending[i+1:]...)
				break
			}
		}
	}
	if len(a.pending) == 0 && a.childrenDone {
		return a.completeChildren()
	}
	return nil
}

func (a *asyncContext) completeChildren() error {
	a.childrenDone = true
	if a.info.async == nil || len(a.pending) > 0 {
		return nil
	}
	a.info.async = nil
	a.engine.table.RemoveDisposeCallback(a.node, a.disposeID)
	err := a.engine.notify(a.node, DescendantsComplete)
	if aerr := a.notifyAncestor(); err == nil {
		err = aerr
	}
	return err
}

// StartPossiblyAsyncContentBinding starts descendant-completion tracking
// for n and returns ctx extended so that nodes bound beneath n register
// with it. Handlers that render n's content later, outside the
// synchronous pass, call this from Init and bind the content with the
// returned context.
func (e *Engine) StartPossiblyAsyncContentBinding(n *html.Node, ctx *Context) *Context {
	info := e.info(n, true)
	if info.async == nil {
		info.async = e.newAsyncContext(n, info, ctx.ancestorInfo())
		info.asyncStarted = true
	}
	if ctx.ancestorInfo() == info {
		return ctx
	}
	return ctx.withAncestor(info)
}

// CompleteAsync marks n's own content as finished. Handlers that render
// asynchronously call it once their content is in place; it stands in for
// the children-complete signal the synchronous pass would have sent.
func (e *Engine) CompleteAsync(n *html.Node) error {
	return e.notify(n, ChildrenComplete)
}
