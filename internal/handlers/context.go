package handlers

import (
	"fmt"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/reactive"
)

// Using binds the node's children against the binding value as a new
// child context. The child context follows the value when it is reactive.
func Using() binding.Handler {
	return binding.Handler{
		AllowVirtual: true,
		Init: func(a *binding.Args) (binding.InitResult, error) {
			value := rereader(a)
			inner := a.Context.DeriveChild(func() any { return value() }, "", nil)
			if err := a.Engine.ApplyBindingsToDescendants(inner, a.Node); err != nil {
				return binding.InitResult{}, err
			}
			return binding.InitResult{ControlsDescendantBindings: true}, nil
		},
	}
}

// Let binds the node's children against the current context extended
// with the entries of a map value. Entries are stored as given: reactive
// entries stay reactive.
func Let() binding.Handler {
	return binding.Handler{
		AllowVirtual: true,
		Init: func(a *binding.Args) (binding.InitResult, error) {
			value := rereader(a)
			var (
				bound     bool
				extendErr error
				last      map[string]any
			)
			inner := a.Context.ExtendWithFunc(func(x *binding.Extension) {
				v := reactive.Unwrap(value())
				props, ok := v.(map[string]any)
				if !ok && v != nil {
					err := fmt.Errorf("let binding expects a map, got %T", v)
					if !bound {
						extendErr = err
						return
					}
					a.Report(err)
					props = last
				}
				last = props
				for k, v := range props {
					x.Set(k, v)
				}
			})
			bound = true
			if extendErr != nil {
				return binding.InitResult{}, extendErr
			}
			if err := a.Engine.ApplyBindingsToDescendants(inner, a.Node); err != nil {
				return binding.InitResult{}, err
			}
			return binding.InitResult{ControlsDescendantBindings: true}, nil
		},
	}
}

// rereader wraps the value accessor of a binding whose context rebuilds
// on its own. The first read fails as usual, failing Init. A later read
// that fails has no caller: it is reported and yields the last value read.
func rereader(a *binding.Args) func() any {
	var (
		last any
		done bool
	)
	return func() any {
		if !done {
			last = a.Value()
			done = true
			return last
		}
		v, err := tryRead(a.Value)
		if err != nil {
			a.Report(err)
			return last
		}
		last = v
		return v
	}
}

func tryRead(read binding.Accessor) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return read(), nil
}
