package fetcher

import (
	"bytes"
	"unicode"

	"golang.org/x/net/html"
)

// Thresholds for IsSufficient.
const (
	minBodyBytes = 256
	minTextRunes = 200
	minTextRatio = 0.10
)

var spaIndicators = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte(`<app-root></app-root>`),
	[]byte(`<noscript>you need to enable javascript`),
	[]byte(`<noscript>enable javascript`),
}

// IsSufficient reports whether body carries enough visible text for the
// static DOM to be worth inspecting. Script shells (an empty mount point
// plus bundles) are not.
func IsSufficient(body []byte) bool {
	if len(body) < minBodyBytes {
		return false
	}

	textLen, markupLen := textMarkupRatio(body)
	total := textLen + markupLen
	if total == 0 || textLen < minTextRunes {
		return false
	}
	if float64(textLen)/float64(total) < minTextRatio {
		return false
	}

	lower := bytes.ToLower(body)
	for _, ind := range spaIndicators {
		if bytes.Contains(lower, ind) {
			return false
		}
	}
	return true
}

// textMarkupRatio tokenizes body and counts non-space visible text runes
// against everything else. Script and style bodies count as markup.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	raw := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return text, markup
		}
		chunk := z.Raw()
		if tt != html.TextToken {
			markup += len(chunk)
			if tt == html.StartTagToken {
				name, _ := z.TagName()
				switch string(name) {
				case "script", "style", "template":
					raw++
				}
			}
			if tt == html.EndTagToken && raw > 0 {
				name, _ := z.TagName()
				switch string(name) {
				case "script", "style", "template":
					raw--
				}
			}
			continue
		}
		if raw > 0 {
			markup += len(chunk)
			continue
		}
		for _, r := range string(chunk) {
			if !unicode.IsSpace(r) {
				text++
			}
		}
	}
}
