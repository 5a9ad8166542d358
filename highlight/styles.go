package highlight

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/superx/dom"
)

// StyleID is the id of the injected stylesheet.
const StyleID = "xpath-highlight-styles"

const stylesheet = `
.xpath-query-match {
  outline: 2px solid #4285f4 !important;
  outline-offset: 2px !important;
  background-color: rgba(66, 133, 244, 0.2) !important;
  animation: xpath-pulse 2s infinite !important;
}

@keyframes xpath-pulse {
  0% { outline-offset: 2px; }
  50% { outline-offset: 4px; }
  100% { outline-offset: 2px; }
}

.xpath-highlight {
  outline: 2px solid #ff5722 !important;
  outline-offset: 2px !important;
  background-color: rgba(255, 87, 34, 0.1) !important;
  transition: outline-color 0.15s ease !important;
}
`

// EnsureStyles appends the highlight stylesheet to the document head unless
// it is already present. It reports whether a node was added.
func EnsureStyles(doc *html.Node) bool {
	var head, htmlEl *html.Node
	found := false
	dom.Walk(doc, func(n *html.Node) bool {
		if found || n.Type != html.ElementNode {
			return !found
		}
		switch {
		case dom.ID(n) == StyleID:
			found = true
		case n.DataAtom == atom.Head && head == nil:
			head = n
		case n.DataAtom == atom.Html && htmlEl == nil:
			htmlEl = n
		}
		return true
	})
	if found {
		return false
	}

	parent := head
	if parent == nil {
		parent = htmlEl
	}
	if parent == nil {
		parent = doc
	}

	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
		Attr:     []html.Attribute{{Key: "id", Val: StyleID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: stylesheet})
	parent.AppendChild(style)
	return true
}

// RemoveStyles detaches the injected stylesheet. It reports whether one was
// found.
func RemoveStyles(doc *html.Node) bool {
	var style *html.Node
	dom.Walk(doc, func(n *html.Node) bool {
		if style != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Style && dom.ID(n) == StyleID {
			style = n
			return false
		}
		return true
	})
	if style == nil || style.Parent == nil {
		return false
	}
	style.Parent.RemoveChild(style)
	return true
}
