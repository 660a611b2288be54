package reactive

// edge links a computed to one subscribable it read during its last
// evaluation. sub is nil while the computed sleeps.
type edge struct {
	src     Subscribable
	version uint64
	sub     *Subscription
}

// Computed is a derived value that re-evaluates whenever a subscribable it
// read changes.
//
// INVARIANTS:
//   - deps holds exactly the subscribables read by the last evaluation
//   - an awake computed has a live subscription on every dep
//   - a sleeping computed has none and refreshes lazily on read
type Computed struct {
	core
	read  func() any
	value any

	pure         bool
	deferred     bool
	sleeping     bool
	evaluated    bool
	evaluating   bool
	disposed     bool
	alwaysNotify bool

	deps     map[uint64]*edge
	order    []uint64 // dependency ids in first-read order
	prevDeps map[uint64]*edge

	disposeWhen func() bool
	onDispose   []func()
}

// ComputedOption configures a Computed.
type ComputedOption func(*Computed)

// Pure makes the computed sleep while it has no subscribers.
func Pure() ComputedOption {
	return func(c *Computed) {
		c.pure = true
	}
}

// Deferred postpones the first evaluation until the value is read or
// the computed gains its first subscriber.
func Deferred() ComputedOption {
	return func(c *Computed) {
		c.deferred = true
	}
}

// WithDisposeWhen installs a predicate checked before every re-evaluation
// triggered by a dependency change. When it reports true the computed is
// disposed instead of re-evaluated.
func WithDisposeWhen(fn func() bool) ComputedOption {
	return func(c *Computed) {
		c.disposeWhen = fn
	}
}

// NewComputed creates a computed over read and evaluates it once, unless
// it is Deferred.
//
// A panic raised by read on this first evaluation propagates to the
// caller; the computed keeps whatever dependencies were read before it.
func (rt *Runtime) NewComputed(read func() any, opts ...ComputedOption) *Computed {
	c := &Computed{
		core: newCore(rt),
		read: read,
		deps: make(map[uint64]*edge),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pure {
		c.sleeping = true
		c.first = c.wake
		c.last = c.sleep
	} else if c.deferred {
		c.first = c.refresh
	}
	if !c.deferred {
		c.evaluate()
	}
	return c
}

func (c *Computed) base() *core { return &c.core }

// Get refreshes the value if needed and registers a dependency.
func (c *Computed) Get() any {
	if c.disposed {
		return c.value
	}
	c.refresh()
	c.rt.track(c)
	return c.value
}

// Peek refreshes the value if needed without registering a dependency.
func (c *Computed) Peek() any {
	if !c.disposed {
		c.refresh()
	}
	return c.value
}

// Subscribe registers fn to run after every change. The first subscriber
// wakes a sleeping pure computed.
func (c *Computed) Subscribe(fn func()) *Subscription {
	return c.subscribe(fn)
}

// SetAlwaysNotify makes every re-evaluation notify subscribers, even when
// the new value equals the old one.
func (c *Computed) SetAlwaysNotify() {
	c.alwaysNotify = true
}

// IsActive reports whether the computed can still change: it is not
// disposed and its last evaluation read at least one subscribable.
func (c *Computed) IsActive() bool {
	if c.disposed {
		return false
	}
	return c.evaluating || !c.evaluated || len(c.deps) > 0
}

// IsSleeping reports whether a pure computed is currently asleep.
func (c *Computed) IsSleeping() bool {
	return c.sleeping
}

// DependencyCount returns the number of subscribables read by the last
// evaluation.
func (c *Computed) DependencyCount() int {
	return len(c.deps)
}

// OnDispose registers fn to run once when the computed is disposed.
func (c *Computed) OnDispose(fn func()) {
	if c.disposed {
		fn()
		return
	}
	c.onDispose = append(c.onDispose, fn)
}

// Dispose releases every dependency subscription. A disposed computed
// keeps its last value and never re-evaluates.
func (c *Computed) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	for _, id := range c.order {
		c.deps[id].sub.Dispose()
	}
	c.deps = make(map[uint64]*edge)
	c.order = nil
	hooks := c.onDispose
	c.onDispose = nil
	for _, fn := range hooks {
		fn()
	}
}

// IsDisposed reports whether Dispose ran.
func (c *Computed) IsDisposed() bool {
	return c.disposed
}

func (c *Computed) refresh() {
	if c.evaluating {
		return
	}
	if !c.evaluated || (c.sleeping && c.stale()) {
		c.evaluate()
	}
}

// stale reports whether any dependency moved since the last evaluation.
// Computed dependencies are refreshed first so their versions are current.
func (c *Computed) stale() bool {
	for _, id := range c.order {
		e := c.deps[id]
		if dep, ok := e.src.(*Computed); ok {
			dep.refresh()
		}
		if e.src.base().version != e.version {
			return true
		}
	}
	return false
}

// evaluate runs read inside a fresh dependency frame and reports whether
// the value changed. Dependencies that were not read again are released.
func (c *Computed) evaluate() bool {
	if c.evaluating || c.disposed {
		return false
	}
	c.evaluating = true
	c.prevDeps = c.deps
	c.deps = make(map[uint64]*edge, len(c.prevDeps))
	c.order = nil

	var value any
	func() {
		c.rt.push(c)
		defer func() {
			c.rt.pop()
			c.evaluating = false
			for id, e := range c.prevDeps {
				if _, kept := c.deps[id]; !kept {
					e.sub.Dispose()
				}
			}
			c.prevDeps = nil
		}()
		value = c.read()
	}()

	first := !c.evaluated
	old := c.value
	c.value = value
	c.evaluated = true
	if first || c.alwaysNotify || !primitiveEqual(old, value) {
		c.version++
		return !first
	}
	return false
}

func (c *Computed) addDependency(s Subscribable) {
	b := s.base()
	e, reused := c.prevDeps[b.id]
	if !reused {
		e = &edge{src: s}
	}
	e.version = b.version
	if !c.sleeping && e.sub == nil {
		e.sub = b.subscribe(c.onChange)
	}
	c.deps[b.id] = e
	c.order = append(c.order, b.id)
}

func (c *Computed) onChange() {
	if c.disposed || c.evaluating {
		return
	}
	if c.disposeWhen != nil && c.disposeWhen() {
		c.Dispose()
		return
	}
	if c.evaluate() {
		c.notify()
	}
}

// wake subscribes to every dependency, re-evaluating first if the
// computed went stale while asleep.
func (c *Computed) wake() {
	if c.disposed || !c.sleeping {
		return
	}
	c.sleeping = false
	if !c.evaluated || c.stale() {
		c.evaluate()
		return
	}
	for _, id := range c.order {
		e := c.deps[id]
		if e.sub == nil {
			e.sub = e.src.base().subscribe(c.onChange)
		}
	}
}

func (c *Computed) sleep() {
	if c.disposed || !c.pure {
		return
	}
	c.sleeping = true
	for _, id := range c.order {
		e := c.deps[id]
		e.sub.Dispose()
		e.sub = nil
	}
}

func (c *Computed) dependsOn(target *core, visited map[uint64]bool) bool {
	if visited[c.id] {
		return false
	}
	visited[c.id] = true
	for _, id := range c.order {
		e := c.deps[id]
		if e.src.base() == target {
			return true
		}
		if dep, ok := e.src.(*Computed); ok && dep.dependsOn(target, visited) {
			return true
		}
	}
	return false
}
