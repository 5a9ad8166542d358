// CLAUDE:SUMMARY Element picking by CSS subset, XPath or fuzzy text: the programmatic stand-in for hovering an element.
// Package locate resolves a user-facing locator to elements of a parsed
// document. The matched elements feed xpathgen to produce paths.
package locate

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/xpathgen"
)

// Kind selects how Locator.Value is interpreted.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
	KindText  Kind = "text"
)

var (
	ErrUnknownKind = errors.New("locate: unknown locator kind")
	ErrNoMatch     = errors.New("locate: no element matched")
	ErrEmptyValue  = errors.New("locate: empty locator value")
)

// Locator describes which elements to pick. Limit caps the result when > 0.
type Locator struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
	Limit int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// ParseKind maps a user string to a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCSS, KindXPath, KindText:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Find returns the elements selected by loc. CSS and XPath results are in
// document order; text results are ranked best first. A locator that
// selects nothing returns ErrNoMatch.
func Find(doc *html.Node, loc Locator) ([]*html.Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("locate: find: nil document")
	}
	if strings.TrimSpace(loc.Value) == "" {
		return nil, ErrEmptyValue
	}

	var nodes []*html.Node
	switch loc.Kind {
	case KindCSS:
		nodes = QuerySelectorAll(doc, loc.Value)
	case KindXPath:
		ms := xpathgen.Evaluate(loc.Value, doc)
		if ms.Err != nil {
			return nil, fmt.Errorf("locate: xpath: %w", ms.Err)
		}
		nodes = ms.Nodes
	case KindText:
		nodes = FindText(doc, loc.Value)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, loc.Kind)
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNoMatch, loc.Kind, loc.Value)
	}
	if loc.Limit > 0 && len(nodes) > loc.Limit {
		nodes = nodes[:loc.Limit]
	}
	return nodes, nil
}

// First is Find limited to the best element.
func First(doc *html.Node, loc Locator) (*html.Node, error) {
	loc.Limit = 1
	nodes, err := Find(doc, loc)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}
