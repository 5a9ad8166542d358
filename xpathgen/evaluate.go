package xpathgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// MatchSet is the ordered result of evaluating an expression: element nodes
// in document order. A non-nil Err means the expression was invalid, which
// is distinct from a valid expression matching nothing.
type MatchSet struct {
	Expr  string
	Nodes []*html.Node
	Count int
	Err   error
}

// Unique reports whether the set holds exactly the single element n.
func (m MatchSet) Unique(n *html.Node) bool {
	return m.Err == nil && m.Count == 1 && m.Nodes[0] == n
}

// Evaluate resolves expr against scope. Absolute expressions are anchored at
// the top of scope's tree. Non-element matches (text, attributes, comments,
// the document itself) are dropped. The tree is never modified.
func Evaluate(expr string, scope *html.Node) MatchSet {
	ms := MatchSet{Expr: expr}
	if scope == nil {
		ms.Err = &ExprError{Expr: expr, Err: errors.New("nil scope")}
		return ms
	}
	if strings.TrimSpace(expr) == "" {
		ms.Err = &ExprError{Expr: expr, Err: errors.New("empty expression")}
		return ms
	}

	compiled, err := xpath.Compile(expr)
	if err != nil {
		ms.Err = &ExprError{Expr: expr, Err: err}
		return ms
	}

	nodes, err := selectElements(compiled, scope)
	if err != nil {
		ms.Err = &ExprError{Expr: expr, Err: err}
		return ms
	}
	ms.Nodes = dom.SortDocumentOrder(dom.Root(scope), nodes)
	ms.Count = len(ms.Nodes)
	return ms
}

// selectElements runs a compiled expression. antchfx/xpath panics on some
// argument type mismatches that only surface at evaluation time; those are
// reported as errors.
func selectElements(expr *xpath.Expr, scope *html.Node) (nodes []*html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			err = fmt.Errorf("evaluate: %v", r)
		}
	}()

	iter, ok := expr.Evaluate(dom.NewNavigator(scope)).(*xpath.NodeIterator)
	if !ok {
		return nil, errors.New("expression does not select nodes")
	}
	for iter.MoveNext() {
		nav, ok := iter.Current().(*dom.Navigator)
		if !ok || nav.OnAttribute() {
			continue
		}
		if n := nav.Current(); n.Type == html.ElementNode {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}
