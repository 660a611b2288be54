package binding

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

type orderedBinding struct {
	name    string
	handler *Handler
}

// sortBindings orders the bindings of one node so every binding comes
// after the bindings its handler lists in After. Names without a handler
// are dropped. Depth-first with an explicit stack: meeting a name that is
// already on the stack is a cycle.
func (e *Engine) sortBindings(n *html.Node, bindings *Accessors) ([]orderedBinding, error) {
	var (
		result     []orderedBinding
		considered = make(map[string]bool)
		stack      []string
	)

	var visit func(name string) error
	visit = func(name string) error {
		if considered[name] {
			return nil
		}
		h, ok := e.handlers.Lookup(name)
		if ok {
			if len(h.After) > 0 {
				stack = append(stack, name)
				for _, dep := range h.After {
					if !bindings.Has(dep) {
						continue
					}
					if slices.Contains(stack, dep) {
						return &Error{
							Code: ErrCodeCyclicDependency,
							Message: fmt.Sprintf("cannot combine the following bindings, because they have a cyclic dependency: %s",
								strings.Join(stack, ", ")),
							Path: slices.Clone(stack),
							Node: n,
						}
					}
					if err := visit(dep); err != nil {
						return err
					}
				}
				stack = stack[:len(stack)-1]
			}
			result = append(result, orderedBinding{name: name, handler: h})
		}
		considered[name] = true
		return nil
	}

	for _, name := range bindings.Names() {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return result, nil
}
