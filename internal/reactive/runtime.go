package reactive

// Runtime owns the dependency-frame stack shared by every observable and
// computed created from it.
type Runtime struct {
	frames []*frame
	nextID uint64
}

// frame is one level of dependency capture. A frame with a nil computed
// suppresses tracking (see Ignore).
type frame struct {
	computed *Computed
	seen     map[uint64]struct{}
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) id() uint64 {
	rt.nextID++
	return rt.nextID
}

func (rt *Runtime) push(c *Computed) {
	rt.frames = append(rt.frames, &frame{computed: c, seen: make(map[uint64]struct{})})
}

func (rt *Runtime) pop() {
	rt.frames = rt.frames[:len(rt.frames)-1]
}

func (rt *Runtime) top() *frame {
	if len(rt.frames) == 0 {
		return nil
	}
	return rt.frames[len(rt.frames)-1]
}

// track records a read of s against the innermost capturing frame.
func (rt *Runtime) track(s Subscribable) {
	f := rt.top()
	if f == nil || f.computed == nil {
		return
	}
	c := f.computed
	base := s.base()
	if base == &c.core {
		return
	}
	if _, ok := f.seen[base.id]; ok {
		return
	}
	f.seen[base.id] = struct{}{}
	c.addDependency(s)
}

// Current returns the computed whose read function is executing, or nil
// when no dependency capture is active.
func (rt *Runtime) Current() *Computed {
	f := rt.top()
	if f == nil {
		return nil
	}
	return f.computed
}

// Ignore runs fn with dependency capture suspended. Reads inside fn never
// subscribe the enclosing computed.
func (rt *Runtime) Ignore(fn func()) {
	rt.frames = append(rt.frames, &frame{})
	defer rt.pop()
	fn()
}

// DependsOn reports whether the currently evaluating computed already
// depends on s, directly or through one of its dependencies. It reports
// true when nothing is being evaluated, since there is no dependency to
// add in that case.
func (rt *Runtime) DependsOn(s Subscribable) bool {
	c := rt.Current()
	if c == nil {
		return true
	}
	return c.dependsOn(s.base(), make(map[uint64]bool))
}

// IsSubscribable reports whether v is an observable or computed.
func IsSubscribable(v any) bool {
	_, ok := v.(Subscribable)
	return ok
}

// Unwrap returns the value held by v when v is subscribable, registering
// a dependency on it, and v itself otherwise.
func Unwrap(v any) any {
	if s, ok := v.(Subscribable); ok {
		return s.Get()
	}
	return v
}

// PeekUnwrap is Unwrap without dependency registration.
func PeekUnwrap(v any) any {
	if s, ok := v.(Subscribable); ok {
		return s.Peek()
	}
	return v
}
