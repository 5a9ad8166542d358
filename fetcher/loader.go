// CLAUDE:SUMMARY Resolves a page source (URL, file, stdin or inline HTML) to a parsed document, escalating script shells to the headless browser.
package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/fetcher/internal/browser"
)

// RenderMode selects how a URL is acquired. Page.Render additionally
// reports RenderFile and RenderInline for non-URL sources.
type RenderMode string

const (
	RenderHTTP    RenderMode = "http"
	RenderBrowser RenderMode = "browser"
	RenderAuto    RenderMode = "auto"
	RenderFile    RenderMode = "file"
	RenderInline  RenderMode = "inline"
)

var (
	ErrNoSource  = errors.New("fetcher: empty source")
	ErrNoBrowser = errors.New("fetcher: browser rendering disabled")
)

// ParseRenderMode validates a mode string. "" means auto.
func ParseRenderMode(s string) (RenderMode, error) {
	switch m := RenderMode(strings.ToLower(s)); m {
	case "":
		return RenderAuto, nil
	case RenderHTTP, RenderBrowser, RenderAuto:
		return m, nil
	}
	return "", fmt.Errorf("fetcher: unknown render mode %q", s)
}

// Source names where a page comes from. The first non-empty of HTML, Path
// and URL wins. Path "-" reads the Loader's stdin. URL is kept as the page
// address for inline and file sources.
type Source struct {
	URL    string     `json:"url,omitempty"`
	Path   string     `json:"path,omitempty"`
	HTML   string     `json:"html,omitempty"`
	Render RenderMode `json:"render,omitempty"`
}

// ParseSource interprets a command-line argument: an http(s) URL, "-" for
// stdin, or a file path.
func ParseSource(arg string, mode RenderMode) Source {
	switch {
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		return Source{URL: arg, Render: mode}
	default:
		return Source{Path: arg, Render: mode}
	}
}

// Page is a loaded and parsed document.
type Page struct {
	URL       string
	HTML      []byte
	Hash      string
	Doc       *html.Node
	Render    RenderMode
	FetchedAt time.Time
}

// Renderer produces the serialised DOM of a page after scripts ran.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
	Close() error
}

// BrowserConfig configures the headless browser used by NewBrowser.
type BrowserConfig = browser.Config

// NewBrowser returns a Renderer backed by headless Chrome. Chrome starts on
// the first render.
func NewBrowser(cfg BrowserConfig) Renderer {
	return browser.NewManager(cfg)
}

// Loader resolves Sources to Pages.
type Loader struct {
	fetcher  *Fetcher
	renderer Renderer
	stdin    io.Reader
	logger   *slog.Logger

	filesRoot    string
	noFiles      bool
	blockPrivate bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f *Fetcher) LoaderOption {
	return func(l *Loader) { l.fetcher = f }
}

// WithRenderer enables browser rendering.
func WithRenderer(r Renderer) LoaderOption {
	return func(l *Loader) { l.renderer = r }
}

// WithStdin sets the reader used for Path "-".
func WithStdin(r io.Reader) LoaderOption {
	return func(l *Loader) { l.stdin = r }
}

// WithFilesRoot confines Path sources to root. Stdin is refused.
func WithFilesRoot(root string) LoaderOption {
	return func(l *Loader) { l.filesRoot = root }
}

// WithoutFiles refuses Path sources, stdin included, with ErrFilesDisabled.
// WithFilesRoot takes precedence.
func WithoutFiles() LoaderOption {
	return func(l *Loader) { l.noFiles = true }
}

// WithPrivateBlocked rejects URLs that target loopback or private networks.
func WithPrivateBlocked() LoaderOption {
	return func(l *Loader) { l.blockPrivate = true }
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(lg *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader creates a Loader. Without WithRenderer, browser mode fails with
// ErrNoBrowser and auto mode stays on HTTP.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{stdin: os.Stdin, logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	if l.fetcher == nil {
		l.fetcher = New(WithLogger(l.logger))
	}
	return l
}

// Load acquires and parses src.
func (l *Loader) Load(ctx context.Context, src Source) (*Page, error) {
	var (
		body []byte
		mode RenderMode
		addr = src.URL
		err  error
	)
	switch {
	case src.HTML != "":
		body, mode = []byte(src.HTML), RenderInline
	case src.Path != "" && l.noFiles && l.filesRoot == "":
		return nil, ErrFilesDisabled
	case src.Path == "-":
		if l.filesRoot != "" {
			return nil, fmt.Errorf("%w: stdin", ErrPathTraversal)
		}
		body, err = io.ReadAll(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("fetcher: read stdin: %w", err)
		}
		mode = RenderFile
	case src.Path != "":
		path, perr := SafePath(l.filesRoot, src.Path)
		if perr != nil {
			return nil, perr
		}
		body, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("fetcher: read file: %w", err)
		}
		mode = RenderFile
		if addr == "" {
			addr = "file://" + src.Path
		}
	case src.URL != "":
		if l.blockPrivate {
			if err := ValidateURL(src.URL); err != nil {
				return nil, err
			}
		}
		body, addr, mode, err = l.loadURL(ctx, src)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSource
	}

	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	sum := sha256.Sum256(body)
	p := &Page{
		URL:       addr,
		HTML:      body,
		Hash:      hex.EncodeToString(sum[:]),
		Doc:       doc,
		Render:    mode,
		FetchedAt: time.Now().UTC(),
	}
	l.logger.Debug("fetcher: loaded", "url", p.URL, "render", p.Render, "size", len(body))
	return p, nil
}

func (l *Loader) loadURL(ctx context.Context, src Source) ([]byte, string, RenderMode, error) {
	mode := src.Render
	if mode == "" {
		mode = RenderAuto
	}

	switch mode {
	case RenderBrowser:
		if l.renderer == nil {
			return nil, "", "", ErrNoBrowser
		}
		body, err := l.renderer.Render(ctx, src.URL)
		if err != nil {
			return nil, "", "", fmt.Errorf("fetcher: render: %w", err)
		}
		return body, src.URL, RenderBrowser, nil

	case RenderHTTP, RenderAuto:
		res, err := l.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, "", "", err
		}
		if mode == RenderHTTP || res.Sufficient || l.renderer == nil {
			return res.Body, res.URL, RenderHTTP, nil
		}
		body, err := l.renderer.Render(ctx, res.URL)
		if err != nil {
			l.logger.Warn("fetcher: browser escalation failed, keeping static body",
				"url", res.URL, "error", err)
			return res.Body, res.URL, RenderHTTP, nil
		}
		return body, res.URL, RenderBrowser, nil
	}
	return nil, "", "", fmt.Errorf("fetcher: unknown render mode %q", mode)
}

// Close releases the renderer, if any.
func (l *Loader) Close() error {
	if l.renderer != nil {
		return l.renderer.Close()
	}
	return nil
}
