package dom

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"
)

// Key identifies one kind of out-of-band value stored against nodes.
// Keys compare by identity, so two packages can never collide.
type Key struct {
	name string
}

// NewKey creates a fresh key. The name is only used for debugging.
func NewKey(name string) *Key {
	return &Key{name: name}
}

// String returns the key name.
func (k *Key) String() string {
	return k.name
}

// CallbackID identifies a registered disposal callback.
type CallbackID uint64

type disposal struct {
	id CallbackID
	fn func(*html.Node)
}

type entry struct {
	values    map[*Key]any
	callbacks []disposal
}

// Table stores per-node metadata and disposal callbacks without retaining
// the nodes themselves. Entries are keyed by weak pointer and dropped
// automatically once their node is garbage collected; CleanNode drops them
// eagerly.
//
// The mutex exists only because collection cleanups run on a runtime
// goroutine. All other access happens on the goroutine driving bindings.
type Table struct {
	mu      sync.Mutex
	entries map[weak.Pointer[html.Node]]*entry
	nextID  CallbackID
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[weak.Pointer[html.Node]]*entry)}
}

// lookup returns the entry for n, creating it when create is set.
// Callers must hold t.mu.
func (t *Table) lookup(n *html.Node, create bool) *entry {
	wp := weak.Make(n)
	e, ok := t.entries[wp]
	if ok || !create {
		return e
	}
	e = &entry{}
	t.entries[wp] = e
	runtime.AddCleanup(n, t.drop, wp)
	return e
}

func (t *Table) drop(wp weak.Pointer[html.Node]) {
	t.mu.Lock()
	delete(t.entries, wp)
	t.mu.Unlock()
}

// Len returns the number of nodes with live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns the value stored under k for n.
func (t *Table) Get(n *html.Node, k *Key) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(n, false)
	if e == nil {
		return nil, false
	}
	v, ok := e.values[k]
	return v, ok
}

// Set stores v under k for n.
func (t *Table) Set(n *html.Node, k *Key, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(n, true)
	if e.values == nil {
		e.values = make(map[*Key]any)
	}
	e.values[k] = v
}

// GetOrSet returns the value stored under k for n, storing the result of
// create first when there is none. create runs at most once per node.
func (t *Table) GetOrSet(n *html.Node, k *Key, create func() any) any {
	if v, ok := t.Get(n, k); ok {
		return v
	}
	v := create()
	t.Set(n, k, v)
	return v
}

// Delete removes the value stored under k for n.
func (t *Table) Delete(n *html.Node, k *Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.lookup(n, false); e != nil {
		delete(e.values, k)
	}
}

// AddDisposeCallback registers fn to run when n is cleaned.
func (t *Table) AddDisposeCallback(n *html.Node, fn func(*html.Node)) CallbackID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	e := t.lookup(n, true)
	e.callbacks = append(e.callbacks, disposal{id: t.nextID, fn: fn})
	return t.nextID
}

// RemoveDisposeCallback unregisters a callback. Unknown ids are ignored.
func (t *Table) RemoveDisposeCallback(n *html.Node, id CallbackID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(n, false)
	if e == nil {
		return
	}
	for i, cb := range e.callbacks {
		if cb.id == id {
			e.callbacks = append(e.callbacks[:i], e.callbacks[i+1:]...)
			return
		}
	}
}

// HasDisposeCallbacks reports whether n has pending disposal callbacks.
func (t *Table) HasDisposeCallbacks(n *html.Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(n, false)
	return e != nil && len(e.callbacks) > 0
}

// CleanNode runs the disposal callbacks of n and of every element or
// comment beneath it, then drops their entries. Callbacks run without the
// table lock held, in registration order, so they may use the table.
func (t *Table) CleanNode(n *html.Node) {
	if n.Type != html.ElementNode && n.Type != html.CommentNode && n.Type != html.DocumentNode {
		return
	}
	t.cleanOne(n)
	Walk(n, func(d *html.Node) {
		if d.Type == html.ElementNode || d.Type == html.CommentNode {
			t.cleanOne(d)
		}
	})
}

func (t *Table) cleanOne(n *html.Node) {
	t.mu.Lock()
	wp := weak.Make(n)
	e, ok := t.entries[wp]
	if !ok {
		t.mu.Unlock()
		return
	}
	callbacks := e.callbacks
	e.callbacks = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb.fn(n)
	}

	t.mu.Lock()
	delete(t.entries, wp)
	t.mu.Unlock()
}

// RemoveNode cleans n and detaches it from its parent.
func (t *Table) RemoveNode(n *html.Node) {
	t.CleanNode(n)
	Detach(n)
}

// Empty cleans and removes every child of n.
func (t *Table) Empty(n *html.Node) {
	for n.FirstChild != nil {
		t.RemoveNode(n.FirstChild)
	}
}
