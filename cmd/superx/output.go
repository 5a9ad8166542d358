package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hazyhaar/superx/catalog"
	"github.com/hazyhaar/superx/inspector"
)

type format string

const (
	formatText     format = "text"
	formatJSON     format = "json"
	formatMarkdown format = "markdown"
)

func parseFormat(s string) (format, error) {
	switch f := format(strings.ToLower(s)); f {
	case formatText, formatJSON, formatMarkdown:
		return f, nil
	case "md":
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (text, json, markdown)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// mdCell escapes a value for a markdown table cell.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func printGenerate(w io.Writer, f format, resp *inspector.GenerateResponse) error {
	switch f {
	case formatJSON:
		return writeJSON(w, resp)
	case formatMarkdown:
		fmt.Fprintf(w, "## %s\n\n", resp.PageURL)
		fmt.Fprintln(w, "| # | Tag | Text | Full path | Optimized path | Strategy |")
		fmt.Fprintln(w, "|---|-----|------|-----------|----------------|----------|")
		for i, el := range resp.Elements {
			fmt.Fprintf(w, "| %d | %s | %s | `%s` | `%s` | %s |\n",
				i+1, el.Tag, mdCell(el.Text), mdCell(el.FullPath), mdCell(el.OptimizedPath), el.Strategy)
		}
		return nil
	}
	for i, el := range resp.Elements {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "<%s>", el.Tag)
		if el.Text != "" {
			fmt.Fprintf(w, " %q", el.Text)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  full:      %s\n", el.FullPath)
		fmt.Fprintf(w, "  optimized: %s (%s)\n", el.OptimizedPath, el.Strategy)
	}
	return nil
}

func printQuery(w io.Writer, f format, resp *inspector.QueryResponse) error {
	switch f {
	case formatJSON:
		return writeJSON(w, resp)
	case formatMarkdown:
		fmt.Fprintf(w, "## `%s`\n\n%s\n", mdCell(resp.Expr), resp.Summary)
		if len(resp.Matches) == 0 {
			return nil
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| # | Tag | Full path | Optimized path |")
		fmt.Fprintln(w, "|---|-----|-----------|----------------|")
		for _, m := range resp.Matches {
			fmt.Fprintf(w, "| %d | %s | `%s` | `%s` |\n", m.Index+1, m.Tag, mdCell(m.FullPath), mdCell(m.OptimizedPath))
		}
		for _, m := range resp.Matches {
			if m.Preview == nil || m.Preview.Markdown == "" {
				continue
			}
			fmt.Fprintf(w, "\n### Match %d\n\n%s\n", m.Index+1, m.Preview.Markdown)
		}
		return nil
	}
	fmt.Fprintln(w, resp.Summary)
	for _, m := range resp.Matches {
		fmt.Fprintf(w, "[%d] <%s> %s\n", m.Index+1, m.Tag, m.FullPath)
		if m.OptimizedPath != m.FullPath {
			fmt.Fprintf(w, "    %s\n", m.OptimizedPath)
		}
		if m.Preview != nil && m.Preview.Text != "" {
			fmt.Fprintf(w, "    %q\n", m.Preview.Text)
		}
	}
	return nil
}

func printLocators(w io.Writer, f format, locs []*catalog.Locator) error {
	switch f {
	case formatJSON:
		if locs == nil {
			locs = []*catalog.Locator{}
		}
		return writeJSON(w, locs)
	case formatMarkdown:
		fmt.Fprintln(w, "| ID | Name | Page | Optimized path | Last check | Failures |")
		fmt.Fprintln(w, "|----|------|------|----------------|------------|----------|")
		for _, l := range locs {
			fmt.Fprintf(w, "| %s | %s | %s | `%s` | %s | %d |\n",
				l.ID, mdCell(l.Name), mdCell(l.PageURL), mdCell(l.OptimizedPath), stamp(l.LastCheck), l.FailCount)
		}
		return nil
	}
	if len(locs) == 0 {
		fmt.Fprintln(w, "No locators")
		return nil
	}
	for _, l := range locs {
		printLocatorText(w, l)
	}
	return nil
}

func printLocator(w io.Writer, f format, l *catalog.Locator) error {
	if f == formatText {
		printLocatorText(w, l)
		return nil
	}
	return printLocators(w, f, []*catalog.Locator{l})
}

func printLocatorText(w io.Writer, l *catalog.Locator) {
	name := l.Name
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(w, "%s  %s  %s\n", l.ID, name, l.PageURL)
	fmt.Fprintf(w, "  optimized: %s\n", l.OptimizedPath)
	fmt.Fprintf(w, "  full:      %s\n", l.FullPath)
	if l.LastCheck != nil {
		fmt.Fprintf(w, "  checked:   %s (count %d, failures %d)\n", stamp(l.LastCheck), l.LastCount, l.FailCount)
	}
}

func printVerify(w io.Writer, f format, res *inspector.VerifyResult) error {
	switch f {
	case formatJSON:
		return writeJSON(w, res)
	case formatMarkdown:
		fmt.Fprintf(w, "| ID | OK | Consistent | Optimized count | Full count | Failures |\n")
		fmt.Fprintf(w, "|----|----|------------|-----------------|------------|----------|\n")
		fmt.Fprintf(w, "| %s | %t | %t | %d | %d | %d |\n",
			res.Locator.ID, res.OK, res.Consistent, res.OptimizedCount, res.FullCount, res.Locator.FailCount)
		return nil
	}
	status := "OK"
	switch {
	case !res.OK:
		status = "BROKEN"
	case !res.Consistent:
		status = "DRIFTED"
	}
	fmt.Fprintf(w, "%s  %s  optimized=%d full=%d failures=%d\n",
		res.Locator.ID, status, res.OptimizedCount, res.FullCount, res.Locator.FailCount)
	if res.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", res.Error)
	}
	return nil
}

func stamp(ms *int64) string {
	if ms == nil {
		return "never"
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339)
}
