package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bindery/internal/reactive"
)

// Model is a view-model whose leaf fields are observables. Nested structs
// stay plain maps, so `user.name` reaches the observable for that field.
type Model struct {
	rt     *reactive.Runtime
	data   map[string]any
	fields map[string]*reactive.Observable
}

// New wraps data. data itself is not modified.
func New(rt *reactive.Runtime, data map[string]any) *Model {
	m := &Model{rt: rt, fields: make(map[string]*reactive.Observable)}
	m.data = m.wrap("", data)
	return m
}

func (m *Model) wrap(prefix string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = m.wrap(path, nested)
			continue
		}
		o := m.rt.NewObservable(v)
		m.fields[path] = o
		out[k] = o
	}
	return out
}

// Data returns the view-model to bind against.
func (m *Model) Data() map[string]any {
	return m.data
}

// Field returns the observable at a dotted path.
func (m *Model) Field(path string) (*reactive.Observable, bool) {
	o, ok := m.fields[path]
	return o, ok
}

// Get reads a field without tracking.
func (m *Model) Get(path string) (any, error) {
	o, ok := m.fields[path]
	if !ok {
		return nil, fmt.Errorf("no view-model field %q", path)
	}
	return o.Peek(), nil
}

// Set writes a field, rerunning whatever depends on it.
func (m *Model) Set(path string, v any) error {
	o, ok := m.fields[path]
	if !ok {
		return fmt.Errorf("no view-model field %q", path)
	}
	o.Set(v)
	return nil
}

// Apply sets several fields in path order.
func (m *Model) Apply(values map[string]any) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := m.Set(p, values[p]); err != nil {
			return err
		}
	}
	return nil
}

// Paths lists the field paths in sorted order.
func (m *Model) Paths() []string {
	paths := make([]string, 0, len(m.fields))
	for p := range m.fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns the current plain values, nested as they were loaded.
func (m *Model) Snapshot() map[string]any {
	out := map[string]any{}
	for _, p := range m.Paths() {
		parts := strings.Split(p, ".")
		dst := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := dst[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				dst[part] = next
			}
			dst = next
		}
		dst[parts[len(parts)-1]] = m.fields[p].Peek()
	}
	return out
}
