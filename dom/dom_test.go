package dom

import (
	"testing"

	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

const testHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<div id="main" class="  card	primary
 card ">Hello <b>bold</b> world</div>
<p name="">empty name</p>
<script>var x = 1;</script>
</body>
</html>`

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func findTag(root *html.Node, tag string) *html.Node {
	for _, n := range Elements(root) {
		if n.Data == tag {
			return n
		}
	}
	return nil
}

func TestClasses(t *testing.T) {
	doc := mustParse(t, testHTML)
	div := findTag(doc, "div")
	got := Classes(div)
	want := []string{"card", "primary", "card"}
	if len(got) != len(want) {
		t.Fatalf("Classes: got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Classes[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if !HasClass(div, "primary") {
		t.Error("HasClass(primary): got false")
	}
	if HasClass(div, "prim") {
		t.Error("HasClass(prim): partial token must not match")
	}
}

func TestAttr(t *testing.T) {
	doc := mustParse(t, testHTML)
	p := findTag(doc, "p")
	if !HasAttr(p, "name") {
		t.Error("HasAttr(name): empty attribute must still be declared")
	}
	if Attr(p, "name") != "" {
		t.Errorf("Attr(name): got %q, want empty", Attr(p, "name"))
	}
	if HasAttr(p, "id") {
		t.Error("HasAttr(id): got true on element without id")
	}
	if ID(findTag(doc, "div")) != "main" {
		t.Errorf("ID: got %q, want main", ID(findTag(doc, "div")))
	}
	if HasAttr(nil, "id") {
		t.Error("HasAttr(nil): got true")
	}
}

func TestTextContent(t *testing.T) {
	doc := mustParse(t, testHTML)
	div := findTag(doc, "div")
	if got := TextContent(div); got != "Hello bold world" {
		t.Errorf("TextContent: got %q", got)
	}
	if got := OwnText(div); got != "Hello  world" {
		t.Errorf("OwnText: got %q", got)
	}
	if got := TextContent(findTag(doc, "script")); got != "var x = 1;" {
		t.Errorf("TextContent(script): got %q", got)
	}
	if TextContent(nil) != "" {
		t.Error("TextContent(nil): want empty")
	}
}

func TestRootAndElements(t *testing.T) {
	doc := mustParse(t, testHTML)
	b := findTag(doc, "b")
	if Root(b) != doc {
		t.Error("Root: expected document node")
	}
	tags := []string{}
	for _, n := range Elements(doc) {
		tags = append(tags, n.Data)
	}
	want := []string{"html", "head", "title", "body", "div", "b", "p", "script"}
	if len(tags) != len(want) {
		t.Fatalf("Elements: got %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("Elements[%d]: got %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestSortDocumentOrder(t *testing.T) {
	doc := mustParse(t, testHTML)
	div, p, b := findTag(doc, "div"), findTag(doc, "p"), findTag(doc, "b")
	got := SortDocumentOrder(doc, []*html.Node{p, b, div, p})
	if len(got) != 3 {
		t.Fatalf("SortDocumentOrder: got %d nodes, want 3", len(got))
	}
	if got[0] != div || got[1] != b || got[2] != p {
		t.Error("SortDocumentOrder: wrong order")
	}

	detached := &html.Node{Type: html.ElementNode, Data: "span"}
	if got := SortDocumentOrder(doc, []*html.Node{detached}); len(got) != 0 {
		t.Errorf("SortDocumentOrder: detached node kept")
	}
}

func TestNavigator_Select(t *testing.T) {
	doc := mustParse(t, testHTML)
	expr, err := xpath.Compile(`/html/body/div[@id="main"]/b`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	iter := expr.Select(NewNavigator(doc))
	if !iter.MoveNext() {
		t.Fatal("expected one match")
	}
	got := iter.Current().(*Navigator).Current()
	if got != findTag(doc, "b") {
		t.Errorf("matched %q, want b", got.Data)
	}
	if iter.MoveNext() {
		t.Error("expected exactly one match")
	}
}

func TestNavigator_DoctypeInvisible(t *testing.T) {
	doc := mustParse(t, testHTML)
	expr := xpath.MustCompile(`count(/node())`)
	// Only <html> is a child of the document once the doctype is skipped.
	if got := expr.Evaluate(NewNavigator(doc)).(float64); got != 1 {
		t.Errorf("count(/node()): got %v, want 1", got)
	}
}

func TestNavigator_RelativeFromScope(t *testing.T) {
	doc := mustParse(t, testHTML)
	div := findTag(doc, "div")
	expr := xpath.MustCompile(`string(b)`)
	if got := expr.Evaluate(NewNavigator(div)).(string); got != "bold" {
		t.Errorf("string(b): got %q, want bold", got)
	}
	abs := xpath.MustCompile(`string(/html/head/title)`)
	if got := abs.Evaluate(NewNavigator(div)).(string); got != "Test Page" {
		t.Errorf("absolute from scope: got %q", got)
	}
}

func TestOuterHTML(t *testing.T) {
	doc := mustParse(t, `<p>a <b>b</b></p>`)
	if got := OuterHTML(findTag(doc, "b")); got != "<b>b</b>" {
		t.Errorf("OuterHTML: got %q", got)
	}
}
