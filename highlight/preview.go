package highlight

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// DefaultPreviewRunes caps the text and markdown of a preview.
const DefaultPreviewRunes = 500

// Snippet is a safe rendering of one matched element.
type Snippet struct {
	Tag      string `json:"tag"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
}

// Previewer renders matched elements for display outside the page.
// Safe for concurrent use.
type Previewer struct {
	policy   *bluemonday.Policy
	md       *converter.Converter
	maxRunes int
}

// NewPreviewer builds a Previewer. maxRunes <= 0 means DefaultPreviewRunes.
func NewPreviewer(maxRunes int) *Previewer {
	if maxRunes <= 0 {
		maxRunes = DefaultPreviewRunes
	}
	return &Previewer{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		maxRunes: maxRunes,
	}
}

// Preview sanitises n's markup and converts it to markdown. pageURL, when
// set, resolves relative links.
func (p *Previewer) Preview(n *html.Node, pageURL string) (Snippet, error) {
	if !dom.IsElement(n) {
		return Snippet{}, fmt.Errorf("highlight: preview: not an element")
	}
	safe := p.policy.Sanitize(dom.OuterHTML(n))

	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := p.md.ConvertString(safe, opts...)
	if err != nil {
		return Snippet{}, fmt.Errorf("highlight: preview: markdown: %w", err)
	}

	return Snippet{
		Tag:      n.Data,
		HTML:     safe,
		Markdown: truncate(strings.TrimSpace(md), p.maxRunes),
		Text:     truncate(strings.Join(strings.Fields(dom.TextContent(n)), " "), p.maxRunes),
	}, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
