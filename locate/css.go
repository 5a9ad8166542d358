package locate

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// QuerySelectorAll returns the elements matching a CSS selector list in
// document order. Supported forms:
//   - tag: "article", "main", "div"
//   - .class, chained: ".content", ".card.active"
//   - #id: "#main-content"
//   - tag.class, tag#id
//   - tag[attr], tag[attr=val]: "div[data-content]", "div[role=main]"
//   - descendant combinator (space) and child combinator (">")
//   - selector lists separated by commas
func QuerySelectorAll(doc *html.Node, selector string) []*html.Node {
	var all []*html.Node
	for _, group := range strings.Split(selector, ",") {
		all = append(all, queryGroup(doc, group)...)
	}
	return dom.SortDocumentOrder(dom.Root(doc), all)
}

type step struct {
	child bool
	sel   simpleSelector
}

func queryGroup(doc *html.Node, group string) []*html.Node {
	steps := parseSteps(group)
	if len(steps) == 0 {
		return nil
	}

	matches := matchDescendants(doc, steps[0].sel, true)
	for _, st := range steps[1:] {
		var next []*html.Node
		for _, parent := range matches {
			if st.child {
				for c := parent.FirstChild; c != nil; c = c.NextSibling {
					if matchesSelector(c, st.sel) {
						next = append(next, c)
					}
				}
				continue
			}
			next = append(next, matchDescendants(parent, st.sel, false)...)
		}
		matches = next
	}
	return matches
}

// parseSteps splits "a > b c" into steps. ">" may be written with or
// without surrounding spaces.
func parseSteps(group string) []step {
	group = strings.ReplaceAll(group, ">", " > ")
	var steps []step
	child := false
	for _, f := range strings.Fields(group) {
		if f == ">" {
			child = true
			continue
		}
		steps = append(steps, step{child: child, sel: parseSimpleSelector(f)})
		child = false
	}
	return steps
}

// matchDescendants walks below root. The root itself is only tested when
// self is true.
func matchDescendants(root *html.Node, s simpleSelector, self bool) []*html.Node {
	var results []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if (self || n != root) && matchesSelector(n, s) {
			results = append(results, n)
		}
		return true
	})
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
		if dot := strings.IndexByte(s.id, '.'); dot >= 0 {
			s.classes = splitClasses(s.id[dot+1:])
			s.id = s.id[:dot]
		}
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.classes = append(s.classes, splitClasses(sel[idx+1:])...)
		sel = sel[:idx]
	}

	if sel != "*" {
		s.tag = strings.ToLower(sel)
	}
	return s
}

func splitClasses(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ".") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// matchesSelector checks if a node matches a parsed simple selector.
func matchesSelector(n *html.Node, s simpleSelector) bool {
	if !dom.IsElement(n) {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && dom.ID(n) != s.id {
		return false
	}
	for _, c := range s.classes {
		if !dom.HasClass(n, c) {
			return false
		}
	}
	if s.attrKey != "" {
		if !dom.HasAttr(n, s.attrKey) {
			return false
		}
		if s.hasVal && dom.Attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}
