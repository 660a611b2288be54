package handlers

import (
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
)

// Text replaces the node's content with the binding value as a single
// text node. The previous content is cleaned, and nothing inside the node
// is bound.
func Text() binding.Handler {
	return binding.Handler{
		AllowVirtual: true,
		Init: func(*binding.Args) (binding.InitResult, error) {
			return binding.InitResult{ControlsDescendantBindings: true}, nil
		},
		Update: func(a *binding.Args) error {
			text := textOf(valueOf(a))
			return a.Engine.Tree().SetChildren(a.Node, []*html.Node{dom.NewText(text)})
		},
	}
}
