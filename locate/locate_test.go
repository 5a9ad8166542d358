package locate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/xpathgen"
)

const menuHTML = `<html><body>
<div id="app" class="shell">
<ul class="menu"><li class="item active"><a href="/a">Alpha</a></li><li class="item"><a href="/b">Beta</a></li></ul>
<form><input name="q" type="search"><button type="submit">Search now</button></form>
<p>Contact the <span>support team</span></p>
<script>var x = "Alpha";</script>
</div>
</body></html>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(s)
	require.NoError(t, err)
	return doc
}

func TestQuerySelectorAll(t *testing.T) {
	doc := parse(t, menuHTML)
	tests := []struct {
		sel  string
		want int
	}{
		{"li", 2},
		{"li.item", 2},
		{".item.active", 1},
		{"#app", 1},
		{"div#app.shell", 1},
		{"ul > li", 2},
		{"div>ul", 1},
		{"div > li", 0},
		{"div li a", 2},
		{"input[name=q]", 1},
		{`input[name="q"]`, 1},
		{"button[type]", 1},
		{"div div", 0},
		{"*[type=search]", 1},
		{"", 0},
	}
	for _, tt := range tests {
		got := QuerySelectorAll(doc, tt.sel)
		assert.Len(t, got, tt.want, "selector %q", tt.sel)
	}
}

func TestQuerySelectorAll_ListInDocumentOrder(t *testing.T) {
	doc := parse(t, menuHTML)
	got := QuerySelectorAll(doc, "input, a, li.active a")
	require.Len(t, got, 3)
	assert.Equal(t, "Alpha", dom.TextContent(got[0]))
	assert.Equal(t, "Beta", dom.TextContent(got[1]))
	assert.Equal(t, "input", got[2].Data)
}

func TestFind_XPath(t *testing.T) {
	doc := parse(t, menuHTML)

	nodes, err := Find(doc, Locator{Kind: KindXPath, Value: "//li"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	_, err = Find(doc, Locator{Kind: KindXPath, Value: "//li[@"})
	assert.True(t, errors.Is(err, xpathgen.ErrInvalidExpression), "got %v", err)

	_, err = Find(doc, Locator{Kind: KindXPath, Value: "//table"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFind_Errors(t *testing.T) {
	doc := parse(t, menuHTML)

	_, err := Find(doc, Locator{Kind: "regex", Value: "x"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Find(doc, Locator{Kind: KindCSS, Value: "  "})
	assert.ErrorIs(t, err, ErrEmptyValue)

	_, err = Find(nil, Locator{Kind: KindCSS, Value: "li"})
	assert.Error(t, err)

	_, err = Find(doc, Locator{Kind: KindCSS, Value: "table"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFind_Limit(t *testing.T) {
	doc := parse(t, menuHTML)
	nodes, err := Find(doc, Locator{Kind: KindCSS, Value: "li", Limit: 1})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, dom.HasClass(nodes[0], "active"))

	n, err := First(doc, Locator{Kind: KindCSS, Value: "a"})
	require.NoError(t, err)
	assert.Equal(t, "/a", dom.Attr(n, "href"))
}

func TestFindText(t *testing.T) {
	doc := parse(t, menuHTML)

	n, err := First(doc, Locator{Kind: KindText, Value: "Beta"})
	require.NoError(t, err)
	assert.Equal(t, "/b", dom.Attr(n, "href"))

	// Script bodies are never candidates.
	nodes, err := Find(doc, Locator{Kind: KindText, Value: "Alpha"})
	require.NoError(t, err)
	for _, n := range nodes {
		assert.NotEqual(t, "script", n.Data)
	}
	assert.Equal(t, "a", nodes[0].Data)

	n, err = First(doc, Locator{Kind: KindText, Value: "support"})
	require.NoError(t, err)
	assert.Equal(t, "span", n.Data)

	n, err = First(doc, Locator{Kind: KindText, Value: "Srch"})
	require.NoError(t, err)
	assert.Equal(t, "button", n.Data)

	_, err = Find(doc, Locator{Kind: KindText, Value: "zzzz"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFindText_DeepestWinsOnTie(t *testing.T) {
	doc := parse(t, `<html><body><p>Go</p><div><section><b>Go</b></section></div></body></html>`)
	nodes := FindText(doc, "Go")
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].Data)
	assert.Equal(t, "p", nodes[1].Data)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" XPath ")
	require.NoError(t, err)
	assert.Equal(t, KindXPath, k)

	_, err = ParseKind("sql")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
