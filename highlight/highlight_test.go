package highlight

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/xpathgen"
)

const listHTML = `<html><head><title>t</title></head><body>
<ul><li>1</li><li class="odd">2</li><li class=" a  b ">3</li><li class="xpath-query-match">4</li><li>5</li></ul>
</body></html>`

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestMark_ClearRestores(t *testing.T) {
	doc := mustParse(t, listHTML)
	before := dom.OuterHTML(doc)

	ms := xpathgen.Evaluate("//li", doc)
	m := Mark(ms, 0)
	// The fourth li already carries the class and is not recorded.
	if m.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", m.Len())
	}
	for _, n := range ms.Nodes {
		if !dom.HasClass(n, xpathgen.MatchClass) {
			t.Errorf("li %q: missing match class", dom.TextContent(n))
		}
	}
	if got := dom.Attr(ms.Nodes[2], "class"); got != " a  b  xpath-query-match" {
		t.Errorf("class: got %q", got)
	}

	m.Clear()
	if got := dom.OuterHTML(doc); got != before {
		t.Errorf("Clear: document changed\ngot  %s\nwant %s", got, before)
	}
	if m.Len() != 0 {
		t.Errorf("Len after Clear: got %d", m.Len())
	}
}

func TestMark_Limit(t *testing.T) {
	doc := mustParse(t, listHTML)
	ms := xpathgen.Evaluate("//li", doc)
	m := Mark(ms, 2)
	if m.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", m.Len())
	}
	if dom.HasClass(ms.Nodes[2], xpathgen.MatchClass) {
		t.Error("third li: marked beyond limit")
	}
}

func TestMark_ClearAfterExternalChange(t *testing.T) {
	doc := mustParse(t, listHTML)
	odd := xpathgen.Evaluate(`//li[@class="odd"]`, doc).Nodes[0]
	m := Hover(odd)
	if !dom.HasClass(odd, xpathgen.HoverClass) {
		t.Fatal("Hover: class not added")
	}
	for i, a := range odd.Attr {
		if a.Key == "class" {
			odd.Attr[i].Val += " extra"
		}
	}
	m.Clear()
	if got := dom.Attr(odd, "class"); got != "odd extra" {
		t.Errorf("class: got %q, want %q", got, "odd extra")
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{0, 0, "No matches"},
		{1, 0, "1 match"},
		{7, 0, "7 matches"},
		{100, 100, "100 matches"},
		{250, 100, "Showing first 100 of 250 matches"},
	}
	for _, tt := range tests {
		if got := Summary(tt.count, tt.limit); got != tt.want {
			t.Errorf("Summary(%d, %d): got %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestEnsureStyles(t *testing.T) {
	doc := mustParse(t, listHTML)
	if !EnsureStyles(doc) {
		t.Fatal("first EnsureStyles: expected insertion")
	}
	if EnsureStyles(doc) {
		t.Error("second EnsureStyles: expected no-op")
	}
	ms := xpathgen.Evaluate(`//head/style[@id="`+StyleID+`"]`, doc)
	if ms.Count != 1 {
		t.Fatalf("style in head: got %d", ms.Count)
	}
	if !strings.Contains(dom.TextContent(ms.Nodes[0]), ".xpath-query-match") {
		t.Error("style: missing match rule")
	}
	if !strings.Contains(dom.OuterHTML(doc), "outline: 2px solid #ff5722") {
		t.Error("render: stylesheet text escaped or missing")
	}
}

func TestRemoveStyles(t *testing.T) {
	doc := mustParse(t, `<html><head><style>p{}</style></head><body><p>x</p></body></html>`)
	if RemoveStyles(doc) {
		t.Error("RemoveStyles without injection: expected false")
	}
	EnsureStyles(doc)
	if got := xpathgen.FullPath(xpathgen.Evaluate("//head/style[1]", doc).Nodes[0]); got != "/html/head/style[1]" {
		t.Errorf("with injection: got %q", got)
	}
	if !RemoveStyles(doc) {
		t.Fatal("RemoveStyles: expected removal")
	}
	ms := xpathgen.Evaluate("//style", doc)
	if ms.Count != 1 {
		t.Fatalf("//style: got %d, want 1", ms.Count)
	}
	if got := xpathgen.FullPath(ms.Nodes[0]); got != "/html/head/style" {
		t.Errorf("page style path: got %q, want /html/head/style", got)
	}
}

func TestPreview(t *testing.T) {
	doc := mustParse(t, `<div id="card"><p>Hello <a href="/x" onclick="evil()">link</a></p><script>alert(1)</script></div>`)
	card := xpathgen.Evaluate(`//*[@id="card"]`, doc).Nodes[0]

	s, err := NewPreviewer(0).Preview(card, "https://example.com")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if strings.Contains(s.HTML, "onclick") || strings.Contains(s.HTML, "<script") {
		t.Errorf("HTML not sanitised: %s", s.HTML)
	}
	if !strings.Contains(s.Markdown, "[link](") {
		t.Errorf("Markdown: got %q", s.Markdown)
	}
	if s.Tag != "div" {
		t.Errorf("Tag: got %q", s.Tag)
	}

	if _, err := NewPreviewer(0).Preview(nil, ""); err == nil {
		t.Error("Preview(nil): expected error")
	}
}

func TestPreview_Truncates(t *testing.T) {
	doc := mustParse(t, `<p>`+strings.Repeat("word ", 50)+`</p>`)
	p := xpathgen.Evaluate("//p", doc).Nodes[0]
	s, err := NewPreviewer(20).Preview(p, "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := len([]rune(s.Text)); got != 21 {
		t.Errorf("Text runes: got %d, want 21", got)
	}
}
