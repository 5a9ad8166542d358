package xpathgen

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head><title>Shop</title></head>
<body>
<header id="top"><nav class="menu"><a href="/">Home</a><a href="/cart">Cart</a></nav></header>
<main>
<div class="foo">one</div>
<div class="foo">two</div>
<div class="foo bar">three</div>
<p class="x y">both</p>
<p class="x">only x</p>
<p class="y">only y</p>
<form>
<input name="email" type="email">
<input name="dup" type="text">
<input name="dup" type="text">
<input type="checkbox" role="switch">
</form>
<button>Submit</button>
<button>Cancel</button>
<label>Say "hi"</label>
<label>It's "quoted"</label>
<span class="xpath-query-match xpath-highlight">marked</span>
<section><article>a</article><article>b</article><article>c</article></section>
<p>This paragraph is deliberately far longer than fifty characters, unique.</p>
<svg><foreignObject><div>inside svg</div></foreignObject><circle r="1"></circle></svg>
<fb:like data-testid="like"></fb:like>
</main>
</body>
</html>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(s)
	require.NoError(t, err)
	return doc
}

// first returns the first element matching a simple predicate.
func first(t *testing.T, doc *html.Node, match func(*html.Node) bool) *html.Node {
	t.Helper()
	for _, n := range dom.Elements(doc) {
		if match(n) {
			return n
		}
	}
	t.Fatal("element not found")
	return nil
}

func byText(tag, text string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Data == tag && strings.TrimSpace(dom.TextContent(n)) == text
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{``, `""`},
		{`say "hi"`, `'say "hi"'`},
		{`it's`, `"it's"`},
		{`it's "x"`, `concat("it's ", '"', "x", '"')`},
		{`"'`, `concat('"', "'")`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in), "Literal(%q)", tt.in)
	}
}

func TestLiteral_RoundTrips(t *testing.T) {
	doc := parse(t, `<p>x</p>`)
	for _, s := range []string{`a"b`, `a'b`, `a"b'c"d`, `"'"`, `''""`} {
		ms := Evaluate(`//p[string-length(`+Literal(s)+`) = `+strconv.Itoa(len(s))+`]`, doc)
		require.NoError(t, ms.Err, "literal %q", s)
		assert.Equal(t, 1, ms.Count, "literal %q", s)
	}
}

func TestFullPath_Nil(t *testing.T) {
	assert.Equal(t, "", FullPath(nil))
	assert.Equal(t, "", OptimizedPath(nil))
}

func TestFullPath_ID(t *testing.T) {
	doc := parse(t, pageHTML)
	header := first(t, doc, func(n *html.Node) bool { return n.Data == "header" })
	assert.Equal(t, `//*[@id="top"]`, FullPath(header))
	assert.Equal(t, `//*[@id="top"]`, OptimizedPath(header))
}

func TestFullPath_SiblingRank(t *testing.T) {
	doc := parse(t, `<html><body><ul><li>a</li><li>b</li></ul><p>solo</p></body></html>`)
	a := first(t, doc, byText("li", "a"))
	b := first(t, doc, byText("li", "b"))
	p := first(t, doc, byText("p", "solo"))

	// The first li still carries [1] because a following li exists.
	assert.Equal(t, "/html/body/ul/li[1]", FullPath(a))
	assert.Equal(t, "/html/body/ul/li[2]", FullPath(b))
	assert.Equal(t, "/html/body/p", FullPath(p))

	for _, n := range []*html.Node{a, b, p} {
		ms := Evaluate(FullPath(n), doc)
		assert.True(t, ms.Unique(n), "FullPath %s", FullPath(n))
	}
}

func TestFullPath_DoctypeIgnored(t *testing.T) {
	doc := parse(t, "<!DOCTYPE html><html><body></body></html>")
	htmlEl := first(t, doc, func(n *html.Node) bool { return n.Data == "html" })
	assert.Equal(t, "/html", FullPath(htmlEl))
}

func TestFullPath_NonElement(t *testing.T) {
	doc := parse(t, `<p>x</p>`)
	assert.Equal(t, "/", FullPath(doc))
}

func TestFullPath_CustomTagName(t *testing.T) {
	doc := parse(t, pageHTML)
	like := first(t, doc, func(n *html.Node) bool { return n.Data == "fb:like" })
	path := FullPath(like)
	assert.True(t, strings.HasSuffix(path, `/*[local-name()="fb:like"]`), path)
	assert.True(t, Evaluate(path, doc).Unique(like))
}

// Every element of the fixture must be resolved back to itself by both paths.
func TestPaths_ResolveToElement(t *testing.T) {
	doc := parse(t, pageHTML)
	for _, n := range dom.Elements(doc) {
		full := FullPath(n)
		ms := Evaluate(full, doc)
		require.NoError(t, ms.Err, "full %s", full)
		assert.True(t, ms.Unique(n), "full path %s for <%s> matched %d", full, n.Data, ms.Count)

		opt := OptimizedPath(n)
		ms = Evaluate(opt, doc)
		require.NoError(t, ms.Err, "optimized %s", opt)
		assert.True(t, ms.Unique(n), "optimized path %s for <%s> matched %d", opt, n.Data, ms.Count)
	}
}

func TestOptimize_UniqueClassWins(t *testing.T) {
	doc := parse(t, pageHTML)
	three := first(t, doc, byText("div", "three"))

	res := NewOptimizer().Explain(three)
	assert.Equal(t, StrategyClass, res.Strategy)
	assert.Equal(t, `//*[contains(concat(" ", normalize-space(@class), " "), " bar ")]`, res.Path)
	assert.NotContains(t, res.Path, " foo ")
}

func TestOptimize_CombinedClasses(t *testing.T) {
	doc := parse(t, pageHTML)
	both := first(t, doc, byText("p", "both"))

	res := NewOptimizer().Explain(both)
	assert.Equal(t, StrategyClasses, res.Strategy)
	assert.Contains(t, res.Path, `" x "`)
	assert.Contains(t, res.Path, `" y "`)
	assert.Contains(t, res.Path, " and ")
}

func TestOptimize_Name(t *testing.T) {
	doc := parse(t, pageHTML)
	email := first(t, doc, func(n *html.Node) bool { return dom.Attr(n, "name") == "email" })

	res := NewOptimizer().Explain(email)
	assert.Equal(t, StrategyName, res.Strategy)
	assert.Equal(t, `//*[@name="email"]`, res.Path)
}

func TestOptimize_Text(t *testing.T) {
	doc := parse(t, pageHTML)
	submit := first(t, doc, byText("button", "Submit"))

	res := NewOptimizer().Explain(submit)
	assert.Equal(t, StrategyText, res.Strategy)
	assert.Equal(t, `//button[contains(text(), "Submit")]`, res.Path)
}

func TestOptimize_TextTooLong(t *testing.T) {
	doc := parse(t, pageHTML)
	long := first(t, doc, func(n *html.Node) bool {
		return n.Data == "p" && strings.HasPrefix(dom.TextContent(n), "This paragraph")
	})
	require.GreaterOrEqual(t, len([]rune(strings.TrimSpace(dom.TextContent(long)))), DefaultTextLimit)

	res := NewOptimizer().Explain(long)
	assert.Equal(t, StrategyFull, res.Strategy)
	assert.NotContains(t, res.Path, "text()")
}

func TestOptimize_TextQuotes(t *testing.T) {
	doc := parse(t, pageHTML)
	for _, text := range []string{`Say "hi"`, `It's "quoted"`} {
		label := first(t, doc, byText("label", text))
		res := NewOptimizer().Explain(label)
		assert.Equal(t, StrategyText, res.Strategy, text)
		assert.True(t, Evaluate(res.Path, doc).Unique(label), res.Path)
	}
}

func TestOptimize_Attribute(t *testing.T) {
	doc := parse(t, pageHTML)
	checkbox := first(t, doc, func(n *html.Node) bool { return dom.Attr(n, "type") == "checkbox" })

	res := NewOptimizer().Explain(checkbox)
	assert.Equal(t, StrategyAttribute, res.Strategy)
	assert.Equal(t, `//input[@type="checkbox"]`, res.Path)
}

func TestOptimize_FallbackToFullPath(t *testing.T) {
	doc := parse(t, pageHTML)
	var dups []*html.Node
	for _, n := range dom.Elements(doc) {
		if dom.Attr(n, "name") == "dup" {
			dups = append(dups, n)
		}
	}
	require.Len(t, dups, 2)

	for _, n := range dups {
		res := NewOptimizer().Explain(n)
		assert.Equal(t, StrategyFull, res.Strategy)
		assert.Equal(t, FullPath(n), res.Path)
	}
	assert.NotEqual(t, FullPath(dups[0]), FullPath(dups[1]))
}

func TestOptimize_ExcludesInjectedClasses(t *testing.T) {
	doc := parse(t, pageHTML)
	marked := first(t, doc, byText("span", "marked"))

	res := NewOptimizer().Explain(marked)
	assert.NotContains(t, res.Path, "xpath-")
	assert.True(t, Evaluate(res.Path, doc).Unique(marked))

	// Extra exclusions behave the same way.
	three := first(t, doc, byText("div", "three"))
	res = NewOptimizer(WithExcludedClasses("bar")).Explain(three)
	assert.NotContains(t, res.Path, "bar")
	assert.Equal(t, StrategyText, res.Strategy)
}

func TestOptimize_InjectedClassOnTarget(t *testing.T) {
	doc := parse(t, `<html><body><div class="card">a</div><div class="card xpath-highlight">a</div></body></html>`)
	var cards []*html.Node
	for _, n := range dom.Elements(doc) {
		if n.Data == "div" {
			cards = append(cards, n)
		}
	}
	require.Len(t, cards, 2)

	res := NewOptimizer().Explain(cards[1])
	assert.NotContains(t, res.Path, "xpath-highlight")
	assert.Equal(t, "/html/body/div[2]", res.Path)
}

func TestOptimize_SiblingPositions(t *testing.T) {
	doc := parse(t, pageHTML)
	var articles []*html.Node
	for _, n := range dom.Elements(doc) {
		if n.Data == "article" {
			articles = append(articles, n)
		}
	}
	require.Len(t, articles, 3)
	seen := map[string]bool{}
	for _, a := range articles {
		p := FullPath(a)
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestOptimize_TextLimitOption(t *testing.T) {
	doc := parse(t, pageHTML)
	submit := first(t, doc, byText("button", "Submit"))
	res := NewOptimizer(WithTextLimit(3)).Explain(submit)
	assert.Equal(t, StrategyFull, res.Strategy)
}

func TestEvaluate_SyntaxErrorVersusNoMatch(t *testing.T) {
	doc := parse(t, pageHTML)

	bad := Evaluate("not(a valid expr(", doc)
	require.Error(t, bad.Err)
	assert.True(t, errors.Is(bad.Err, ErrInvalidExpression))
	assert.Equal(t, 0, bad.Count)

	none := Evaluate("//nonexistent-tag", doc)
	assert.NoError(t, none.Err)
	assert.Equal(t, 0, none.Count)
}

func TestEvaluate_RejectsNonNodeSets(t *testing.T) {
	doc := parse(t, pageHTML)
	ms := Evaluate("count(//div)", doc)
	assert.ErrorIs(t, ms.Err, ErrInvalidExpression)
	assert.Equal(t, 0, ms.Count)

	ms = Evaluate("", doc)
	assert.ErrorIs(t, ms.Err, ErrInvalidExpression)
}

func TestEvaluate_ElementsOnly(t *testing.T) {
	doc := parse(t, pageHTML)
	for _, expr := range []string{"//button/text()", "//input/@name", "/"} {
		ms := Evaluate(expr, doc)
		assert.NoError(t, ms.Err, expr)
		assert.Equal(t, 0, ms.Count, expr)
	}
}

func TestEvaluate_DocumentOrder(t *testing.T) {
	doc := parse(t, pageHTML)
	ms := Evaluate("//article[3] | //article[1] | //article[2] | //article[1]", doc)
	require.NoError(t, ms.Err)
	require.Equal(t, 3, ms.Count)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, dom.TextContent(ms.Nodes[i]))
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	doc := parse(t, pageHTML)
	a := Evaluate("//div | //p", doc)
	b := Evaluate("//div | //p", doc)
	require.Equal(t, a.Count, b.Count)
	for i := range a.Nodes {
		assert.Same(t, a.Nodes[i], b.Nodes[i])
	}
}

func TestEvaluate_Scope(t *testing.T) {
	doc := parse(t, pageHTML)
	form := first(t, doc, func(n *html.Node) bool { return n.Data == "form" })

	rel := Evaluate("input", form)
	require.NoError(t, rel.Err)
	assert.Equal(t, 4, rel.Count)

	abs := Evaluate("//button", form)
	assert.Equal(t, 2, abs.Count)
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	doc := parse(t, pageHTML)
	before := dom.OuterHTML(doc)
	for _, n := range dom.Elements(doc) {
		OptimizedPath(n)
	}
	Evaluate("//*", doc)
	assert.Equal(t, before, dom.OuterHTML(doc))
}
