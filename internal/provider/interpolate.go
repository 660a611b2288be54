package provider

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
)

const (
	openBrace  = "{{"
	closeBrace = "}}"
)

// rawText elements hold text that is never markup.
var rawText = map[string]bool{
	"script":   true,
	"style":    true,
	"textarea": true,
	"title":    true,
}

// PreprocessNode rewrites {{ expr }} inside a text node into a text
// binding on an empty virtual element, keeping the surrounding text:
//
//	Hello {{ name }}!  =>  Hello <!-- ko text: name --><!-- /ko -->!
//
// It returns the nodes that replaced n, or nil when n has nothing to
// rewrite or interpolation is off.
func (p *Provider) PreprocessNode(n *html.Node) ([]*html.Node, error) {
	if !p.interpolation || n.Type != html.TextNode || n.Parent == nil {
		return nil, nil
	}
	if rawText[dom.TagName(n.Parent)] || !strings.Contains(n.Data, openBrace) {
		return nil, nil
	}
	parts, err := splitInterpolation(n.Data)
	if err != nil {
		return nil, fmt.Errorf("interpolate %s: %w", dom.Path(n), err)
	}

	var out []*html.Node
	for _, part := range parts {
		if !part.expr {
			out = append(out, dom.NewText(part.text))
			continue
		}
		out = append(out,
			dom.NewComment(" ko text: "+part.text+" "),
			dom.NewComment(" /ko "),
		)
	}
	for _, node := range out {
		dom.InsertBefore(n.Parent, node, n)
	}
	dom.Detach(n)
	return out, nil
}

type textPart struct {
	text string
	expr bool
}

func splitInterpolation(s string) ([]textPart, error) {
	var parts []textPart
	for {
		open := strings.Index(s, openBrace)
		if open < 0 {
			break
		}
		end := strings.Index(s[open+len(openBrace):], closeBrace)
		if end < 0 {
			return nil, fmt.Errorf("missing %q after %q", closeBrace, s[open:])
		}
		if open > 0 {
			parts = append(parts, textPart{text: s[:open]})
		}
		expr := strings.TrimSpace(s[open+len(openBrace) : open+len(openBrace)+end])
		if expr == "" {
			return nil, fmt.Errorf("empty interpolation in %q", s)
		}
		parts = append(parts, textPart{text: expr, expr: true})
		s = s[open+len(openBrace)+end+len(closeBrace):]
	}
	if s != "" {
		parts = append(parts, textPart{text: s})
	}
	return parts, nil
}
