// Package binding applies declarative bindings to an HTML document.
//
// A Provider says which bindings a node declares. Each binding name maps to
// a Handler in a Registry. The Engine walks the document, resolves every
// node's bindings against a Context, orders them, and runs the handlers.
//
// ARCHITECTURE:
//
// Contexts:
// A Context is one level of the data hierarchy: the current data item,
// its parents, the root, and any extension properties. A context whose
// data or extension reads observables is reactive: it rebuilds itself in
// place when they change, so handlers holding it always see the current
// values. Contexts that read nothing reactive are plain snapshots.
//
// Application:
// Nodes are bound depth-first in document order. For each node the engine
// resolves the bindings inside a computed, sorts them so each comes after
// the bindings it lists in After, then runs each handler's Init once and
// its Update inside its own computed. A handler can claim the node's
// children; the engine then leaves them alone.
//
// Completion:
// Every bound node is told when its children finished binding. Nodes that
// render content later start async tracking; they are told when their
// whole subtree, deferred regions included, is done. Removing a waiting
// node counts as completion.
//
// Errors:
// Any failure during ApplyBindings aborts the call and is returned as an
// *Error. Failures in later reactive reruns have no caller and go to the
// engine's error handler.
//
// CRITICAL: nothing here is safe for concurrent use. One goroutine owns an
// Engine, its reactive Runtime and the document it binds.
package binding
