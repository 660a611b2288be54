package handlers

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
)

// Attr sets attributes from a map of name to value. nil and false remove
// the attribute; anything else is written as text.
func Attr() binding.Handler {
	return binding.Handler{
		Update: func(a *binding.Args) error {
			attrs, err := fields("attr", valueOf(a))
			if err != nil {
				return err
			}
			for name, v := range attrs {
				if v == nil || v == false {
					dom.RemoveAttr(a.Node, name)
					continue
				}
				dom.SetAttr(a.Node, name, textOf(v))
			}
			return nil
		},
	}
}

// Visible shows the element when the value is truthy and hides it with
// display: none otherwise. inverted flips the test.
func Visible(inverted bool) binding.Handler {
	return binding.Handler{
		Update: func(a *binding.Args) error {
			show := truthy(valueOf(a)) != inverted
			setHidden(a.Node, !show)
			return nil
		},
	}
}

// setHidden adds or removes display: none, leaving other declarations of
// the style attribute alone.
func setHidden(n *html.Node, hidden bool) {
	style, _ := dom.Attr(n, "style")
	var decls []string
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		prop, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		decls = append(decls, d)
	}
	if hidden {
		decls = append(decls, "display: none")
	}
	if len(decls) == 0 {
		dom.RemoveAttr(n, "style")
		return
	}
	dom.SetAttr(n, "style", strings.Join(decls, "; "))
}

// previousClass remembers the classes a string-valued css binding added,
// so the next update can take them off again.
var previousClass = dom.NewKey("handlers.css.previous")

// CSS toggles classes. A map value adds each key whose value is truthy
// and removes the others; keys may name several classes separated by
// spaces. A string value adds those classes, replacing the ones the
// previous update added.
func CSS() binding.Handler {
	return binding.Handler{
		Update: func(a *binding.Args) error {
			v := valueOf(a)
			if s, ok := v.(string); ok {
				table := a.Engine.Table()
				if prev, ok := table.Get(a.Node, previousClass); ok {
					toggleClasses(a.Node, prev.(string), false)
				}
				toggleClasses(a.Node, s, true)
				table.Set(a.Node, previousClass, s)
				return nil
			}
			classes, err := fields("css", v)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(classes))
			for name := range classes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				toggleClasses(a.Node, name, truthy(classes[name]))
			}
			return nil
		},
	}
}

func toggleClasses(n *html.Node, names string, on bool) {
	current, _ := dom.Attr(n, "class")
	list := strings.Fields(current)
	for _, name := range strings.Fields(names) {
		has := slices.Contains(list, name)
		switch {
		case on && !has:
			list = append(list, name)
		case !on && has:
			list = slices.DeleteFunc(list, func(c string) bool { return c == name })
		}
	}
	if len(list) == 0 {
		dom.RemoveAttr(n, "class")
		return
	}
	dom.SetAttr(n, "class", strings.Join(list, " "))
}
