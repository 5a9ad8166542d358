package dom

import (
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Navigator implements xpath.NodeNavigator over an html.Node tree.
// Doctype nodes are invisible to navigation so they never shift sibling
// positions seen by XPath.
type Navigator struct {
	root, cur *html.Node
	attr      int // index into cur.Attr, -1 when positioned on the node itself
}

// NewNavigator positions a navigator on scope. Its root is the top of
// scope's tree, so absolute expressions resolve from the document while
// relative ones resolve from scope.
func NewNavigator(scope *html.Node) *Navigator {
	return &Navigator{root: Root(scope), cur: scope, attr: -1}
}

// Current returns the node under the navigator. While positioned on an
// attribute it returns the owning element.
func (n *Navigator) Current() *html.Node { return n.cur }

// OnAttribute reports whether the navigator is positioned on an attribute.
func (n *Navigator) OnAttribute() bool { return n.attr != -1 }

func (n *Navigator) NodeType() xpath.NodeType {
	if n.attr != -1 {
		return xpath.AttributeNode
	}
	switch n.cur.Type {
	case html.ElementNode:
		return xpath.ElementNode
	case html.TextNode:
		return xpath.TextNode
	case html.CommentNode:
		return xpath.CommentNode
	default:
		return xpath.RootNode
	}
}

func (n *Navigator) LocalName() string {
	if n.attr != -1 {
		return n.cur.Attr[n.attr].Key
	}
	return n.cur.Data
}

// Prefix is always empty: //svg matches foreign elements without a
// namespace binding.
func (n *Navigator) Prefix() string { return "" }

func (n *Navigator) Value() string {
	if n.attr != -1 {
		return n.cur.Attr[n.attr].Val
	}
	switch n.cur.Type {
	case html.TextNode, html.CommentNode:
		return n.cur.Data
	default:
		return TextContent(n.cur)
	}
}

func (n *Navigator) Copy() xpath.NodeNavigator {
	cp := *n
	return &cp
}

func (n *Navigator) MoveToRoot() {
	n.cur = n.root
	n.attr = -1
}

func (n *Navigator) MoveToParent() bool {
	if n.attr != -1 {
		n.attr = -1
		return true
	}
	if n.cur.Parent == nil {
		return false
	}
	n.cur = n.cur.Parent
	return true
}

func (n *Navigator) MoveToNextAttribute() bool {
	if n.cur.Type != html.ElementNode || n.attr >= len(n.cur.Attr)-1 {
		return false
	}
	n.attr++
	return true
}

func (n *Navigator) MoveToChild() bool {
	if n.attr != -1 {
		return false
	}
	c := skipHidden(n.cur.FirstChild, forward)
	if c == nil {
		return false
	}
	n.cur = c
	return true
}

func (n *Navigator) MoveToFirst() bool {
	if n.attr != -1 || n.cur.Parent == nil {
		return false
	}
	first := skipHidden(n.cur.Parent.FirstChild, forward)
	if first == nil || first == n.cur {
		return false
	}
	n.cur = first
	return true
}

func (n *Navigator) MoveToNext() bool {
	if n.attr != -1 {
		return false
	}
	next := skipHidden(n.cur.NextSibling, forward)
	if next == nil {
		return false
	}
	n.cur = next
	return true
}

func (n *Navigator) MoveToPrevious() bool {
	if n.attr != -1 {
		return false
	}
	prev := skipHidden(n.cur.PrevSibling, backward)
	if prev == nil {
		return false
	}
	n.cur = prev
	return true
}

func (n *Navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*Navigator)
	if !ok || o.root != n.root {
		return false
	}
	n.cur = o.cur
	n.attr = o.attr
	return true
}

type direction bool

const (
	forward  direction = true
	backward direction = false
)

func skipHidden(c *html.Node, dir direction) *html.Node {
	for c != nil && c.Type == html.DoctypeNode {
		if dir == forward {
			c = c.NextSibling
		} else {
			c = c.PrevSibling
		}
	}
	return c
}
