package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses a complete HTML document.
func Parse(src string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Body returns the body element of a parsed document, or nil.
func Body(doc *html.Node) *html.Node {
	var body *html.Node
	Walk(doc, func(n *html.Node) {
		if body == nil && n.Type == html.ElementNode && n.Data == "body" {
			body = n
		}
	})
	return body
}

// Walk calls fn for every descendant of n in document order. The child
// list is read before each child is visited, so fn may detach the node
// it is given.
func Walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		fn(c)
		Walk(c, fn)
		c = next
	}
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// Detach removes n from its parent, if it has one.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// IsAttached reports whether n hangs off a document node.
func IsAttached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

// TagName returns the lower-case element name, or "" for other nodes.
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

// RemoveAttr deletes the named attribute.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// NewComment creates a detached comment node.
func NewComment(s string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: s}
}

// NewElement creates a detached element.
func NewElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag}
}

// InsertBefore inserts n into parent before ref, detaching it from any
// previous parent first. A nil ref appends.
func InsertBefore(parent, n, ref *html.Node) {
	if n == ref {
		return
	}
	Detach(n)
	parent.InsertBefore(n, ref)
}

// Children returns the direct children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Path returns a short, stable description of where n sits in its tree,
// such as "html>body>div[1]>#comment[0]". Used in errors and traces.
func Path(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	for p := n; p != nil && p.Type != html.DocumentNode; p = p.Parent {
		parts = append(parts, step(p))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ">")
}

func step(n *html.Node) string {
	name := label(n)
	if n.Parent == nil {
		return name
	}
	idx := 0
	for s := n.Parent.FirstChild; s != nil && s != n; s = s.NextSibling {
		if label(s) == name {
			idx++
		}
	}
	return fmt.Sprintf("%s[%d]", name, idx)
}

func label(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToLower(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	default:
		return "#node"
	}
}
