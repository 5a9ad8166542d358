// CLAUDE:SUMMARY Absolute XPath construction (id shortcut, then tag + sibling-rank segments) and the id selector shared with the optimizer.
// Package xpathgen generates and evaluates XPath expressions for elements of
// an html.Node tree.
//
// FullPath builds a structural path that resolves to exactly one element.
// OptimizedPath tries shorter attribute and text based expressions, each
// checked against the live document, before falling back to FullPath.
// Evaluate resolves any expression to element matches in document order.
//
// The package holds no state and never mutates the tree it is given.
package xpathgen

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// FullPath returns the absolute path of n. An element with a non-empty id
// short-circuits to the id selector. nil yields "".
func FullPath(n *html.Node) string {
	if n == nil {
		return ""
	}
	if id := dom.ID(n); id != "" && n.Type == html.ElementNode {
		return idSelector(id)
	}

	var segments []string
	for el := n; el != nil && el.Type == html.ElementNode; el = el.Parent {
		segments = append(segments, segment(el))
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return "/" + strings.Join(segments, "/")
}

// segment renders one level: the tag plus a 1-based position when any other
// element sibling shares the tag.
func segment(el *html.Node) string {
	index := 0
	for s := el.PrevSibling; s != nil; s = s.PrevSibling {
		if sameTag(s, el) {
			index++
		}
	}
	hasFollowing := false
	for s := el.NextSibling; s != nil; s = s.NextSibling {
		if sameTag(s, el) {
			hasFollowing = true
			break
		}
	}

	if index > 0 || hasFollowing {
		return nameTest(el.Data) + "[" + strconv.Itoa(index+1) + "]"
	}
	return nameTest(el.Data)
}

// nameTest renders a tag as a node test. Tags that are not NCNames, such as
// "fb:like" from custom markup, are matched through local-name().
func nameTest(tag string) string {
	if isNCName(tag) {
		return tag
	}
	return "*[local-name()=" + Literal(tag) + "]"
}

func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

// sameTag compares element siblings by tag. Doctype, text and comment
// siblings never count.
func sameTag(s, el *html.Node) bool {
	return s.Type == html.ElementNode && s.Data == el.Data
}

func idSelector(id string) string {
	return "//*[@id=" + Literal(id) + "]"
}
