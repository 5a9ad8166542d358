package locate

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// MaxTextRunes bounds the own text considered by the text locator. Longer
// runs are prose, not labels.
const MaxTextRunes = 200

type textCandidate struct {
	node  *html.Node
	text  string
	depth int
	order int
}

// textSource adapts candidates to fuzzy.Source.
type textSource []textCandidate

func (s textSource) String(i int) string { return s[i].text }
func (s textSource) Len() int            { return len(s) }

// FindText ranks elements whose own text fuzzily matches query. Exact
// substring hits outrank scattered matches, closer lengths outrank longer
// texts, and among equal texts the deepest element wins.
func FindText(doc *html.Node, query string) []*html.Node {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	cands := textCandidates(doc)
	matches := fuzzy.FindFrom(query, cands)
	if len(matches) == 0 {
		return nil
	}

	lowerQuery := strings.ToLower(query)
	score := func(m fuzzy.Match) int {
		text := cands[m.Index].text
		s := m.Score
		diff := utf8.RuneCountInString(text) - utf8.RuneCountInString(query)
		if diff < 0 {
			diff = -diff
		}
		s -= diff * 10
		if strings.Contains(strings.ToLower(text), lowerQuery) {
			s += 100
		}
		if text == query {
			s += 100
		}
		return s
	}

	type ranked struct {
		c     textCandidate
		score int
	}
	out := make([]ranked, len(matches))
	for i, m := range matches {
		out[i] = ranked{c: cands[m.Index], score: score(m)}
	}
	slices.SortStableFunc(out, func(a, b ranked) int {
		switch {
		case a.score != b.score:
			return b.score - a.score
		case a.c.depth != b.c.depth:
			return b.c.depth - a.c.depth
		}
		return a.c.order - b.c.order
	})

	nodes := make([]*html.Node, len(out))
	for i, r := range out {
		nodes[i] = r.c.node
	}
	return nodes
}

// textCandidates collects elements with short, non-blank own text, skipping
// script and style bodies.
func textCandidates(doc *html.Node) textSource {
	var cands textSource
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
			text := strings.Join(strings.Fields(dom.OwnText(n)), " ")
			if text != "" && utf8.RuneCountInString(text) <= MaxTextRunes {
				cands = append(cands, textCandidate{node: n, text: text, depth: depth, order: len(cands)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	walk(doc, 0)
	return cands
}
