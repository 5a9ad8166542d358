package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// SortDocumentOrder de-duplicates nodes and sorts them in document order
// relative to root. Nodes outside root's tree are dropped.
func SortDocumentOrder(root *html.Node, nodes []*html.Node) []*html.Node {
	if len(nodes) == 0 {
		return nil
	}
	pos := make(map[*html.Node]int, len(nodes))
	for _, n := range nodes {
		pos[n] = -1
	}
	i := 0
	Walk(root, func(n *html.Node) bool {
		if _, ok := pos[n]; ok {
			pos[n] = i
		}
		i++
		return true
	})

	out := make([]*html.Node, 0, len(pos))
	for n, p := range pos {
		if p >= 0 {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *html.Node) int { return pos[a] - pos[b] })
	return out
}
