package provider

import (
	"context"
	"reflect"

	"github.com/risor-io/risor/object"

	"github.com/roach88/bindery/internal/reactive"
)

// converter turns Go values into risor objects for one evaluation and
// remembers which objects stand for Go values that must come back
// unchanged: reactive values, functions, maps, lists and proxied structs.
type converter struct {
	refs map[object.Object]any
}

func newConverter() *converter {
	return &converter{refs: make(map[object.Object]any)}
}

func (c *converter) toObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case object.Object:
		return val
	case reactive.Subscribable:
		return c.remember(c.reactiveBuiltin(val), val)
	case func() any:
		return c.remember(object.NewBuiltin("accessor", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 0 {
				return object.NewArgsError("accessor", 0, len(args))
			}
			return c.toObject(val())
		}), val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case []any:
		items := make([]object.Object, len(val))
		for i, item := range val {
			items[i] = c.toObject(item)
		}
		return c.remember(object.NewList(items), val)
	case map[string]any:
		items := make(map[string]object.Object, len(val))
		for k, item := range val {
			items[k] = c.toObject(item)
		}
		return c.remember(object.NewMap(items), val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return c.remember(object.NewBuiltin("callback", func(ctx context.Context, args ...object.Object) object.Object {
			return object.Errorf("type error: %T cannot be called from a binding expression", v)
		}), v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return object.NewInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return object.NewInt(int64(rv.Uint()))
	case reflect.Float32:
		return object.NewFloat(rv.Float())
	case reflect.Struct, reflect.Pointer:
		p, err := object.NewProxy(v)
		if err != nil {
			return object.Errorf("type error: cannot expose %T: %v", v, err)
		}
		return c.remember(p, v)
	}
	return object.FromGoType(v)
}

func (c *converter) remember(obj object.Object, v any) object.Object {
	c.refs[obj] = v
	return obj
}

// reactiveBuiltin exposes s as a function: called with no arguments it
// reads s, registering a dependency; called with one argument it writes
// s when s is writable.
func (c *converter) reactiveBuiltin(s reactive.Subscribable) *object.Builtin {
	return object.NewBuiltin("observable", func(ctx context.Context, args ...object.Object) object.Object {
		switch len(args) {
		case 0:
			return c.toObject(s.Get())
		case 1:
			obs, ok := s.(*reactive.Observable)
			if !ok {
				return object.Errorf("type error: computed values are read-only")
			}
			obs.Set(c.fromObject(args[0]))
			return object.Nil
		}
		return object.NewArgsError("observable", 1, len(args))
	})
}

// fromObject converts a result back into a Go value. Objects built from Go
// values return the original.
func (c *converter) fromObject(obj object.Object) any {
	if obj == nil {
		return nil
	}
	if v, ok := c.refs[obj]; ok {
		return v
	}
	switch o := obj.(type) {
	case *object.NilType:
		return nil
	case *object.String:
		return o.Value()
	case *object.Bool:
		return o.Value()
	case *object.Int:
		return int(o.Value())
	case *object.Float:
		return o.Value()
	case *object.List:
		items := o.Value()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = c.fromObject(item)
		}
		return out
	case *object.Map:
		items := o.Value()
		out := make(map[string]any, len(items))
		for k, item := range items {
			out[k] = c.fromObject(item)
		}
		return out
	}
	return obj.Interface()
}

// errorValue reports a risor error object returned as a result.
func errorValue(obj object.Object) error {
	if e, ok := obj.(*object.Error); ok {
		return e.Value()
	}
	return nil
}
