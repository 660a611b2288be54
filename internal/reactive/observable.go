package reactive

// Subscribable is implemented by Observable and Computed.
type Subscribable interface {
	// Get returns the current value and registers a dependency on the
	// subscribable with the evaluating computed, if any.
	Get() any

	// Peek returns the current value without registering a dependency.
	Peek() any

	// Subscribe registers fn to run after every change notification.
	Subscribe(fn func()) *Subscription

	base() *core
}

// core is the state shared by observables and computeds.
type core struct {
	rt      *Runtime
	id      uint64
	version uint64
	subs    []*Subscription

	// first and last fire when the subscriber count leaves or reaches
	// zero. Pure computeds use them to wake and sleep.
	first func()
	last  func()
}

func newCore(rt *Runtime) core {
	return core{rt: rt, id: rt.id()}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	src      *core
	fn       func()
	disposed bool
}

// Dispose stops further notifications. Disposing twice is a no-op.
func (s *Subscription) Dispose() {
	if s == nil || s.disposed {
		return
	}
	s.disposed = true
	c := s.src
	for i, sub := range c.subs {
		if sub == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	if len(c.subs) == 0 && c.last != nil {
		c.last()
	}
}

func (c *core) subscribe(fn func()) *Subscription {
	sub := &Subscription{src: c, fn: fn}
	c.subs = append(c.subs, sub)
	if len(c.subs) == 1 && c.first != nil {
		c.first()
	}
	return sub
}

// notify runs every live subscriber in subscription order. Subscribers
// added during notification are not called until the next change.
func (c *core) notify() {
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	for _, sub := range subs {
		if !sub.disposed {
			sub.fn()
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (c *core) SubscriberCount() int {
	return len(c.subs)
}

// Observable is a mutable reactive value.
type Observable struct {
	core
	value        any
	alwaysNotify bool
}

// NewObservable creates an observable holding v.
func (rt *Runtime) NewObservable(v any) *Observable {
	return &Observable{core: newCore(rt), value: v}
}

func (o *Observable) base() *core { return &o.core }

// Get returns the value and registers a dependency.
func (o *Observable) Get() any {
	o.rt.track(o)
	return o.value
}

// Peek returns the value without registering a dependency.
func (o *Observable) Peek() any {
	return o.value
}

// Set stores v and notifies subscribers. Writes of an equal primitive
// value are dropped unless SetAlwaysNotify was called.
func (o *Observable) Set(v any) {
	if !o.alwaysNotify && primitiveEqual(o.value, v) {
		return
	}
	o.value = v
	o.version++
	o.notify()
}

// Subscribe registers fn to run after every change.
func (o *Observable) Subscribe(fn func()) *Subscription {
	return o.subscribe(fn)
}

// SetAlwaysNotify disables the equality short-circuit in Set.
func (o *Observable) SetAlwaysNotify() {
	o.alwaysNotify = true
}

// primitiveEqual treats values of basic kinds as equal when == holds.
// Anything else (maps, slices, structs, pointers) is never equal, so
// writing the same container again still notifies.
func primitiveEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case int32:
		bv, ok := b.(int32)
		return ok && av == bv
	case uint:
		bv, ok := b.(uint)
		return ok && av == bv
	case uint64:
		bv, ok := b.(uint64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case float32:
		bv, ok := b.(float32)
		return ok && av == bv
	}
	return false
}
