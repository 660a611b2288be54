package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustBody(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := Parse("<html><body>" + src + "</body></html>")
	require.NoError(t, err)
	body := Body(doc)
	require.NotNil(t, body)
	return body
}

func TestTable_GetSet(t *testing.T) {
	table := NewTable()
	k := NewKey("info")
	n := NewElement("div")

	_, ok := table.Get(n, k)
	assert.False(t, ok)

	table.Set(n, k, 7)
	v, ok := table.Get(n, k)
	require.True(t, ok)
	assert.Equal(t, 7, v)

	table.Delete(n, k)
	_, ok = table.Get(n, k)
	assert.False(t, ok)
}

func TestTable_KeysDoNotCollide(t *testing.T) {
	table := NewTable()
	a, b := NewKey("same"), NewKey("same")
	n := NewElement("div")

	table.Set(n, a, "a")
	table.Set(n, b, "b")

	va, _ := table.Get(n, a)
	vb, _ := table.Get(n, b)
	assert.Equal(t, "a", va)
	assert.Equal(t, "b", vb)
}

func TestTable_GetOrSetCreatesOnce(t *testing.T) {
	table := NewTable()
	k := NewKey("k")
	n := NewElement("div")

	calls := 0
	create := func() any { calls++; return calls }

	assert.Equal(t, 1, table.GetOrSet(n, k, create))
	assert.Equal(t, 1, table.GetOrSet(n, k, create))
	assert.Equal(t, 1, calls)
}

func TestTable_CleanNodeRunsCallbacksForSubtree(t *testing.T) {
	body := mustBody(t, `<div id="outer"><span></span><!-- note --></div>`)
	table := NewTable()
	outer := body.FirstChild
	span := outer.FirstChild
	comment := span.NextSibling

	var order []string
	table.AddDisposeCallback(outer, func(*html.Node) { order = append(order, "outer") })
	table.AddDisposeCallback(span, func(*html.Node) { order = append(order, "span") })
	table.AddDisposeCallback(comment, func(*html.Node) { order = append(order, "comment") })

	table.CleanNode(outer)

	assert.Equal(t, []string{"outer", "span", "comment"}, order)
	assert.Equal(t, 0, table.Len())

	table.CleanNode(outer)
	assert.Len(t, order, 3, "callbacks run once")
}

func TestTable_RemoveDisposeCallback(t *testing.T) {
	table := NewTable()
	n := NewElement("div")

	ran := false
	id := table.AddDisposeCallback(n, func(*html.Node) { ran = true })
	assert.True(t, table.HasDisposeCallbacks(n))

	table.RemoveDisposeCallback(n, id)
	assert.False(t, table.HasDisposeCallbacks(n))

	table.CleanNode(n)
	assert.False(t, ran)
}

func TestTable_CleanNodeIgnoresText(t *testing.T) {
	table := NewTable()
	n := NewText("hello")
	k := NewKey("k")
	table.Set(n, k, 1)

	table.CleanNode(n)

	_, ok := table.Get(n, k)
	assert.True(t, ok)
}

func TestTable_RemoveNodeDetaches(t *testing.T) {
	body := mustBody(t, `<p>a</p><p>b</p>`)
	table := NewTable()
	first := body.FirstChild

	table.RemoveNode(first)

	assert.Nil(t, first.Parent)
	assert.Equal(t, "<p>b</p>", InnerHTML(body))
	assert.False(t, IsAttached(first))
}

func TestAttrHelpers(t *testing.T) {
	n := NewElement("div")

	_, ok := Attr(n, "title")
	assert.False(t, ok)

	SetAttr(n, "title", "one")
	SetAttr(n, "title", "two")
	v, ok := Attr(n, "title")
	require.True(t, ok)
	assert.Equal(t, "two", v)
	assert.Len(t, n.Attr, 1)

	RemoveAttr(n, "title")
	assert.Empty(t, n.Attr)
}

func TestPath(t *testing.T) {
	body := mustBody(t, `<div></div><div><span></span><!--x--></div>`)
	second := body.FirstChild.NextSibling
	comment := second.LastChild

	assert.Equal(t, "html[0]>body[0]>div[1]", Path(second))
	assert.Equal(t, "html[0]>body[0]>div[1]>#comment[0]", Path(comment))
	assert.Equal(t, "", Path(nil))
}

func TestInsertBefore_MovesAttachedNode(t *testing.T) {
	body := mustBody(t, `<i></i><b></b>`)
	i, b := body.FirstChild, body.LastChild

	InsertBefore(body, b, i)

	assert.Equal(t, "<b></b><i></i>", InnerHTML(body))
	assert.Len(t, Children(body), 2)
}
