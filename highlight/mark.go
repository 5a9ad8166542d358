// CLAUDE:SUMMARY Reversible class marking of query matches and the hovered element, plus the injected highlight stylesheet.
// Package highlight marks elements of a parsed document the way the browser
// overlay did: matches get xpath-query-match, the picked element gets
// xpath-highlight. Every mark records enough to be undone exactly.
package highlight

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/xpathgen"
)

// DefaultLimit is the maximum number of matches marked per query.
const DefaultLimit = 100

type mark struct {
	node    *html.Node
	class   string
	hadAttr bool
	before  string
	after   string
}

// Marks records classes added to a document so they can be removed.
type Marks struct {
	marks []mark
}

// Len returns the number of marked elements.
func (m *Marks) Len() int { return len(m.marks) }

// Nodes returns the marked elements in marking order.
func (m *Marks) Nodes() []*html.Node {
	out := make([]*html.Node, len(m.marks))
	for i, mk := range m.marks {
		out[i] = mk.node
	}
	return out
}

// Clear removes every class this Marks added. An attribute left untouched
// since marking is restored byte for byte; one changed since only loses the
// added token.
func (m *Marks) Clear() {
	for i := len(m.marks) - 1; i >= 0; i-- {
		mk := m.marks[i]
		cur, ok := classAttr(mk.node)
		switch {
		case !ok:
		case cur == mk.after && mk.hadAttr:
			setClass(mk.node, mk.before)
		case cur == mk.after:
			removeClass(mk.node)
		default:
			setClass(mk.node, withoutToken(cur, mk.class))
		}
	}
	m.marks = nil
}

// Mark adds MatchClass to the first limit elements of ms. limit <= 0 means
// DefaultLimit. Elements already carrying the class are left alone.
func Mark(ms xpathgen.MatchSet, limit int) *Marks {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m := &Marks{}
	for i, n := range ms.Nodes {
		if i >= limit {
			break
		}
		m.add(n, xpathgen.MatchClass)
	}
	return m
}

// Hover adds HoverClass to n.
func Hover(n *html.Node) *Marks {
	m := &Marks{}
	m.add(n, xpathgen.HoverClass)
	return m
}

func (m *Marks) add(n *html.Node, class string) {
	if !dom.IsElement(n) || dom.HasClass(n, class) {
		return
	}
	before, had := classAttr(n)
	after := class
	if strings.TrimSpace(before) != "" {
		after = before + " " + class
	}
	setClass(n, after)
	m.marks = append(m.marks, mark{node: n, class: class, hadAttr: had, before: before, after: after})
}

// Summary renders a match count the way the query panel did.
func Summary(count, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	switch {
	case count > limit:
		return fmt.Sprintf("Showing first %d of %d matches", limit, count)
	case count == 0:
		return "No matches"
	case count == 1:
		return "1 match"
	default:
		return fmt.Sprintf("%d matches", count)
	}
}

func classAttr(n *html.Node) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			return a.Val, true
		}
	}
	return "", false
}

func setClass(n *html.Node, v string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			n.Attr[i].Val = v
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: v})
}

func removeClass(n *html.Node) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func withoutToken(v, token string) string {
	fields := strings.Fields(v)
	out := fields[:0]
	for _, f := range fields {
		if f != token {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
