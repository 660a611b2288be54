package virtual

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
)

var (
	startMarker = regexp.MustCompile(`^\s*ko(?:\s+([\s\S]+))?\s*$`)
	endMarker   = regexp.MustCompile(`^\s*/ko\s*$`)
)

// matchedKey tags end markers that some start marker was paired with.
var matchedKey = dom.NewKey("virtual.matched")

// listTags holds elements whose children may be closed implicitly by the
// HTML parser, splitting marker pairs across sibling elements.
var listTags = map[string]bool{"ul": true, "ol": true}

// StructuralError reports unbalanced or misplaced markers.
type StructuralError struct {
	Message string
	Node    *html.Node
}

func (e *StructuralError) Error() string {
	return e.Message
}

// IsStructuralError reports whether err is or wraps a StructuralError.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsStart reports whether n is a start marker comment.
func IsStart(n *html.Node) bool {
	return n != nil && n.Type == html.CommentNode && startMarker.MatchString(n.Data)
}

// IsEnd reports whether n is an end marker comment.
func IsEnd(n *html.Node) bool {
	return n != nil && n.Type == html.CommentNode && endMarker.MatchString(n.Data)
}

// BindingValue returns the binding expression carried by a start marker,
// or "" when n is not a start marker or carries none.
func BindingValue(n *html.Node) string {
	if n == nil || n.Type != html.CommentNode {
		return ""
	}
	m := startMarker.FindStringSubmatch(n.Data)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Tree performs container operations over real elements and marker-pair
// virtual elements alike. Matched end markers are tagged in the side
// table, so a Tree must share its table with whoever removes nodes.
type Tree struct {
	table   *dom.Table
	allowed map[string]bool
}

// NewTree creates a Tree backed by table.
func NewTree(table *dom.Table) *Tree {
	return &Tree{table: table, allowed: make(map[string]bool)}
}

// AllowBinding permits the named binding on virtual elements.
func (t *Tree) AllowBinding(name string) {
	t.allowed[name] = true
}

// Allowed reports whether the named binding may be used on a virtual
// element.
func (t *Tree) Allowed(name string) bool {
	return t.allowed[name]
}

func (t *Tree) isUnmatchedEnd(n *html.Node) bool {
	if !IsEnd(n) {
		return false
	}
	_, ok := t.table.Get(n, matchedKey)
	return !ok
}

// Children returns the nodes strictly between start and its matching end
// marker. Every end marker passed over is tagged as matched. When no match
// exists it returns a StructuralError, or nil and no error if
// allowUnbalanced is set.
func (t *Tree) Children(start *html.Node, allowUnbalanced bool) ([]*html.Node, error) {
	depth := 1
	children := []*html.Node{}
	for n := start.NextSibling; n != nil; n = n.NextSibling {
		if IsEnd(n) {
			t.table.Set(n, matchedKey, true)
			depth--
			if depth == 0 {
				return children, nil
			}
		}
		children = append(children, n)
		if IsStart(n) {
			depth++
		}
	}
	if allowUnbalanced {
		return nil, nil
	}
	return nil, &StructuralError{
		Message: fmt.Sprintf("cannot find closing comment tag to match: %s", start.Data),
		Node:    start,
	}
}

// MatchingEnd returns the end marker paired with start.
func (t *Tree) MatchingEnd(start *html.Node, allowUnbalanced bool) (*html.Node, error) {
	children, err := t.Children(start, allowUnbalanced)
	if err != nil || children == nil {
		return nil, err
	}
	if len(children) > 0 {
		return children[len(children)-1].NextSibling, nil
	}
	return start.NextSibling, nil
}

// ChildNodes returns the children of a real element or of a virtual
// element.
func (t *Tree) ChildNodes(n *html.Node) ([]*html.Node, error) {
	if IsStart(n) {
		return t.Children(n, false)
	}
	return dom.Children(n), nil
}

// FirstChild returns the first child of n, or nil. For a start marker the
// matching end marker is found and tagged first, so walking a virtual
// element does not depend on its parent level having been walked.
func (t *Tree) FirstChild(n *html.Node) (*html.Node, error) {
	if !IsStart(n) {
		if IsEnd(n.FirstChild) {
			return nil, &StructuralError{
				Message: fmt.Sprintf("found invalid end comment, as the first child of %s", dom.Path(n)),
				Node:    n.FirstChild,
			}
		}
		return n.FirstChild, nil
	}
	end, err := t.MatchingEnd(n, false)
	if err != nil {
		return nil, err
	}
	if n.NextSibling == end {
		return nil, nil
	}
	return n.NextSibling, nil
}

// NextSibling returns the sibling after n, skipping over the contents of
// n when it is a start marker. It returns nil at the end of a virtual
// element.
func (t *Tree) NextSibling(n *html.Node) (*html.Node, error) {
	if IsStart(n) {
		end, err := t.MatchingEnd(n, false)
		if err != nil {
			return nil, err
		}
		n = end
	}
	next := n.NextSibling
	if IsEnd(next) {
		if t.isUnmatchedEnd(next) {
			return nil, &StructuralError{
				Message: fmt.Sprintf("found end comment without a matching opening comment, as child of %s", dom.Path(n.Parent)),
				Node:    next,
			}
		}
		return nil, nil
	}
	return next, nil
}

// Empty removes every child of n, running their disposal callbacks.
func (t *Tree) Empty(n *html.Node) error {
	if !IsStart(n) {
		t.table.Empty(n)
		return nil
	}
	children, err := t.Children(n, false)
	if err != nil {
		return err
	}
	for _, c := range children {
		t.table.RemoveNode(c)
	}
	return nil
}

// SetChildren replaces the children of n with nodes.
func (t *Tree) SetChildren(n *html.Node, nodes []*html.Node) error {
	if err := t.Empty(n); err != nil {
		return err
	}
	if !IsStart(n) {
		for _, c := range nodes {
			dom.InsertBefore(n, c, nil)
		}
		return nil
	}
	end := n.NextSibling
	for _, c := range nodes {
		dom.InsertBefore(end.Parent, c, end)
	}
	return nil
}

// Prepend inserts child as the first child of container.
func (t *Tree) Prepend(container, child *html.Node) {
	var before *html.Node
	if IsStart(container) {
		before = container.NextSibling
		container = container.Parent
	} else {
		before = container.FirstChild
	}
	dom.InsertBefore(container, child, before)
}

// InsertAfter inserts child into container right after ref, or as the
// first child when ref is nil.
func (t *Tree) InsertAfter(container, child, ref *html.Node) {
	if ref == nil {
		t.Prepend(container, child)
		return
	}
	before := ref.NextSibling
	if IsStart(container) {
		container = container.Parent
	}
	dom.InsertBefore(container, child, before)
}

// Normalize repairs list elements whose marker pairs the HTML parser split
// across implicitly closed children: trailing unbalanced markers inside a
// child element are hoisted out to follow that child.
func (t *Tree) Normalize(el *html.Node) {
	if !listTags[dom.TagName(el)] {
		return
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		unbalanced := t.unbalancedChildren(c)
		before := c.NextSibling
		for _, u := range unbalanced {
			dom.InsertBefore(el, u, before)
		}
	}
}

// unbalancedChildren returns the run of children of n starting at the
// first start marker without a match or the first stray end marker.
func (t *Tree) unbalancedChildren(n *html.Node) []*html.Node {
	var captured []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case captured != nil:
			captured = append(captured, c)
		case IsStart(c):
			end, _ := t.MatchingEnd(c, true)
			if end != nil {
				c = end
			} else {
				captured = []*html.Node{c}
			}
		case IsEnd(c):
			captured = []*html.Node{c}
		}
	}
	return captured
}
