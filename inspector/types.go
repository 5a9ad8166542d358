package inspector

import (
	"time"

	"github.com/hazyhaar/superx/catalog"
	"github.com/hazyhaar/superx/fetcher"
	"github.com/hazyhaar/superx/highlight"
	"github.com/hazyhaar/superx/locate"
	"github.com/hazyhaar/superx/xpathgen"
)

// PageRef identifies a page in requests. Exactly one of URL, Path or HTML is
// usually set; URL may accompany HTML as the page address.
type PageRef struct {
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
	HTML   string `json:"html,omitempty"`
	Render string `json:"render,omitempty"`
}

func (p PageRef) source() (fetcher.Source, error) {
	mode, err := fetcher.ParseRenderMode(p.Render)
	if err != nil {
		return fetcher.Source{}, err
	}
	return fetcher.Source{URL: p.URL, Path: p.Path, HTML: p.HTML, Render: mode}, nil
}

// GenerateRequest picks elements on a page and asks for their paths.
type GenerateRequest struct {
	PageRef
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Limit int    `json:"limit,omitempty"`
}

// GeneratedPath is the pair of paths produced for one picked element.
type GeneratedPath struct {
	Tag           string            `json:"tag"`
	Text          string            `json:"text,omitempty"`
	FullPath      string            `json:"full_path"`
	OptimizedPath string            `json:"optimized_path"`
	Strategy      xpathgen.Strategy `json:"strategy"`
}

// GenerateResponse lists generated paths in locator order.
type GenerateResponse struct {
	PageURL  string          `json:"page_url"`
	Render   string          `json:"render"`
	Locator  locate.Locator  `json:"locator"`
	Elements []GeneratedPath `json:"elements"`
}

// QueryRequest evaluates an expression against a page.
type QueryRequest struct {
	PageRef
	Expr    string `json:"expr"`
	Preview bool   `json:"preview,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Match is one element of a query result.
type Match struct {
	Index         int                `json:"index"`
	Tag           string             `json:"tag"`
	FullPath      string             `json:"full_path"`
	OptimizedPath string             `json:"optimized_path"`
	Preview       *highlight.Snippet `json:"preview,omitempty"`
}

// QueryResponse reports the true match count and at most the configured
// number of matches.
type QueryResponse struct {
	PageURL   string  `json:"page_url"`
	Expr      string  `json:"expr"`
	Count     int     `json:"count"`
	Truncated bool    `json:"truncated"`
	Summary   string  `json:"summary"`
	Matches   []Match `json:"matches"`
}

// SaveLocatorRequest stores a locator. With Kind/Value set the element is
// picked from the page and its paths generated; otherwise FullPath and
// OptimizedPath are stored as given.
type SaveLocatorRequest struct {
	PageRef
	Name          string `json:"name,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Value         string `json:"value,omitempty"`
	FullPath      string `json:"full_path,omitempty"`
	OptimizedPath string `json:"optimized_path,omitempty"`
}

// ListLocatorsRequest filters saved locators by page.
type ListLocatorsRequest struct {
	PageURL string `json:"page_url,omitempty"`
}

// LocatorIDRequest names a saved locator.
type LocatorIDRequest struct {
	ID string `json:"id"`
}

// VerifyLocatorRequest re-evaluates a saved locator. Page overrides the
// stored page URL, for example with a local copy.
type VerifyLocatorRequest struct {
	ID   string  `json:"id"`
	Page PageRef `json:"page"`
}

// VerifyResult is the outcome of a verification. OK means the optimized
// path still selects exactly one element; Consistent means both paths
// select that same element.
type VerifyResult struct {
	Locator        *catalog.Locator `json:"locator"`
	OptimizedCount int              `json:"optimized_count"`
	FullCount      int              `json:"full_count"`
	OK             bool             `json:"ok"`
	Consistent     bool             `json:"consistent"`
	Error          string           `json:"error,omitempty"`
}

// DeleteResponse acknowledges a deletion.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// AuditRequest filters the audit trail. Zero fields match everything.
type AuditRequest struct {
	Operation string    `json:"operation,omitempty"`
	Status    string    `json:"status,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}
