// CLAUDE:SUMMARY Service orchestrator: loads pages, picks elements, generates and evaluates XPath, persists and re-verifies locators.
// Package inspector is the programmatic replacement for the browser overlay:
// it loads a page, picks elements, generates their paths, evaluates
// expressions and keeps a catalog of saved locators. The same operations
// are exposed over MCP, HTTP and a live websocket session.
//
// Usage:
//
//	svc, err := inspector.New(cfg, logger)
//	defer svc.Close()
//	svc.RegisterMCP(mcpServer)
//	svc.RegisterHTTP(router)
package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/audit"
	"github.com/hazyhaar/superx/catalog"
	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/fetcher"
	"github.com/hazyhaar/superx/highlight"
	"github.com/hazyhaar/superx/locate"
	"github.com/hazyhaar/superx/xpathgen"
)

// ErrBadRequest marks invalid request fields.
var ErrBadRequest = errors.New("inspector: bad request")

// ErrAuditDisabled is returned by AuditTrail when auditing is off.
var ErrAuditDisabled = errors.New("inspector: audit trail disabled")

// Service is the inspector orchestrator. Safe for concurrent use.
type Service struct {
	cfg       *Config
	logger    *slog.Logger
	store     *catalog.Store
	ownStore  bool
	loader    *fetcher.Loader // local callers
	remote    *fetcher.Loader // network callers
	exposed   bool
	optimizer *xpathgen.Optimizer
	previewer *highlight.Previewer
	audit     *audit.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore uses an already opened catalog. The caller keeps ownership.
func WithStore(s *catalog.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithLoader replaces the page loaders built from the configuration. l
// serves local and network callers alike; its guards are the caller's.
func WithLoader(l *fetcher.Loader) Option {
	return func(svc *Service) { svc.loader = l }
}

// Exposed marks MCP calls as coming from the network, so they load pages
// through the guarded loader like HTTP requests do. The serve command sets
// it; the stdio server does not.
func Exposed() Option {
	return func(svc *Service) { svc.exposed = true }
}

// New creates a Service. The catalog at cfg.DBPath is opened unless
// WithStore is given.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(s)
	}

	if s.store == nil {
		st, err := catalog.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s.store = st
		s.ownStore = true
	}
	if cfg.Audit.Enabled {
		al, err := audit.New(s.store.DB, cfg.Audit.Buffer, audit.WithLogger(logger))
		if err != nil {
			if s.ownStore {
				s.store.Close()
			}
			return nil, err
		}
		s.audit = al
	}
	if s.loader == nil {
		s.loader, s.remote = newLoaders(cfg, logger)
	} else if s.remote == nil {
		s.remote = s.loader
	}

	s.optimizer = xpathgen.NewOptimizer(
		xpathgen.WithTextLimit(cfg.Optimizer.TextLimit),
		xpathgen.WithAttributes(cfg.Optimizer.Attributes...),
		xpathgen.WithExcludedClasses(cfg.Optimizer.ExcludedClasses...),
		xpathgen.WithLogger(logger),
	)
	s.previewer = highlight.NewPreviewer(cfg.Query.PreviewRunes)
	return s, nil
}

// newLoaders builds the loader for local callers and the one for network
// callers. Network callers never read files outside files_root, and reach
// private addresses only when allow_private is set. Both share one browser;
// closing the local loader releases it.
func newLoaders(cfg *Config, logger *slog.Logger) (local, remote *fetcher.Loader) {
	var renderer fetcher.Renderer
	if cfg.BrowserWanted() {
		renderer = fetcher.NewBrowser(fetcher.BrowserConfig{
			RemoteURL:        cfg.Browser.RemoteURL,
			Bin:              cfg.Browser.Bin,
			Stealth:          !cfg.Browser.DisableStealth,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			NavigateTimeout:  cfg.Browser.NavigateTimeout,
			Settle:           cfg.Browser.Settle,
			Logger:           logger,
		})
	}

	build := func(blockPrivate bool, files ...fetcher.LoaderOption) *fetcher.Loader {
		client := &http.Client{Timeout: cfg.Fetch.Timeout}
		if blockPrivate {
			client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return fetcher.ValidateURL(req.URL.String())
			}
		}
		f := fetcher.New(
			fetcher.WithClient(client),
			fetcher.WithUserAgent(cfg.Fetch.UserAgent),
			fetcher.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetcher.WithLogger(logger),
		)
		opts := append([]fetcher.LoaderOption{fetcher.WithFetcher(f), fetcher.WithLoaderLogger(logger)}, files...)
		if blockPrivate {
			opts = append(opts, fetcher.WithPrivateBlocked())
		}
		if renderer != nil {
			opts = append(opts, fetcher.WithRenderer(renderer))
		}
		return fetcher.NewLoader(opts...)
	}

	var localFiles, remoteFiles []fetcher.LoaderOption
	if cfg.Fetch.FilesRoot != "" {
		localFiles = append(localFiles, fetcher.WithFilesRoot(cfg.Fetch.FilesRoot))
		remoteFiles = append(remoteFiles, fetcher.WithFilesRoot(cfg.Fetch.FilesRoot))
	} else if !cfg.Fetch.AllowFiles {
		remoteFiles = append(remoteFiles, fetcher.WithoutFiles())
	}
	local = build(cfg.Fetch.BlockPrivate, localFiles...)
	remote = build(cfg.Fetch.BlockPrivate || !cfg.Fetch.AllowPrivate, remoteFiles...)
	return local, remote
}

// Close releases the browser and, when opened by New, the catalog.
func (s *Service) Close() error {
	err := s.loader.Close()
	if s.audit != nil {
		err = errors.Join(err, s.audit.Close())
	}
	if s.ownStore {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// AuditTrail returns recorded operations, newest first.
func (s *Service) AuditTrail(ctx context.Context, req *AuditRequest) ([]audit.Entry, error) {
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	return s.audit.Query(ctx, audit.Filter{
		Operation: req.Operation,
		Status:    req.Status,
		Since:     req.Since,
		Limit:     req.Limit,
	})
}

type remoteKey struct{}

// withRemote marks ctx as carrying a request from the network.
func withRemote(ctx context.Context) context.Context {
	return context.WithValue(ctx, remoteKey{}, true)
}

func isRemote(ctx context.Context) bool {
	v, _ := ctx.Value(remoteKey{}).(bool)
	return v
}

// Store exposes the catalog.
func (s *Service) Store() *catalog.Store { return s.store }

// Load acquires and parses a page. An empty render mode uses the
// configured default.
func (s *Service) Load(ctx context.Context, ref PageRef) (*fetcher.Page, error) {
	if ref.Render == "" {
		ref.Render = s.cfg.Fetch.Render
	}
	src, err := ref.source()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	l := s.loader
	if isRemote(ctx) {
		l = s.remote
	}
	page, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	s.logger.Info("inspector: loaded", "url", page.URL, "render", page.Render, "size", len(page.HTML))
	return page, nil
}

// Generate picks elements and returns their full and optimized paths.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	loc, err := buildLocator(req.Kind, req.Value, req.Limit)
	if err != nil {
		return nil, err
	}
	page, err := s.Load(ctx, req.PageRef)
	if err != nil {
		return nil, err
	}
	return s.generate(page, loc)
}

func (s *Service) generate(page *fetcher.Page, loc locate.Locator) (*GenerateResponse, error) {
	nodes, err := locate.Find(page.Doc, loc)
	if err != nil {
		return nil, err
	}
	resp := &GenerateResponse{
		PageURL:  page.URL,
		Render:   string(page.Render),
		Locator:  loc,
		Elements: make([]GeneratedPath, 0, len(nodes)),
	}
	for _, n := range nodes {
		resp.Elements = append(resp.Elements, s.paths(n))
	}
	return resp, nil
}

func (s *Service) paths(n *html.Node) GeneratedPath {
	res := s.optimizer.Explain(n)
	return GeneratedPath{
		Tag:           n.Data,
		Text:          shortText(n, 80),
		FullPath:      xpathgen.FullPath(n),
		OptimizedPath: res.Path,
		Strategy:      res.Strategy,
	}
}

// Query evaluates an expression. An invalid expression is an error; a valid
// one matching nothing is a response with Count 0.
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(req.Expr) == "" {
		return nil, fmt.Errorf("%w: expr is required", ErrBadRequest)
	}
	page, err := s.Load(ctx, req.PageRef)
	if err != nil {
		return nil, err
	}
	resp, _, err := s.query(page, req.Expr, req.Limit, req.Preview)
	return resp, err
}

func (s *Service) query(page *fetcher.Page, expr string, limit int, preview bool) (*QueryResponse, xpathgen.MatchSet, error) {
	ms := xpathgen.Evaluate(expr, page.Doc)
	if ms.Err != nil {
		return nil, ms, ms.Err
	}

	shown := s.cfg.Query.MaxHighlight
	if limit > 0 && limit < shown {
		shown = limit
	}
	resp := &QueryResponse{
		PageURL:   page.URL,
		Expr:      expr,
		Count:     ms.Count,
		Truncated: ms.Count > shown,
		Summary:   highlight.Summary(ms.Count, shown),
		Matches:   make([]Match, 0, min(ms.Count, shown)),
	}
	for i, n := range ms.Nodes {
		if i >= shown {
			break
		}
		m := Match{
			Index:         i,
			Tag:           n.Data,
			FullPath:      xpathgen.FullPath(n),
			OptimizedPath: s.optimizer.Path(n),
		}
		if preview && i < s.cfg.Query.PreviewCount {
			snip, err := s.previewer.Preview(n, page.URL)
			if err != nil {
				s.logger.Debug("inspector: preview failed", "index", i, "error", err)
			} else {
				m.Preview = &snip
			}
		}
		resp.Matches = append(resp.Matches, m)
	}
	return resp, ms, nil
}

// Annotate evaluates expr, marks up to the configured number of matches
// and returns the page serialised with the highlight stylesheet.
func (s *Service) Annotate(ctx context.Context, req *QueryRequest) ([]byte, *QueryResponse, error) {
	if strings.TrimSpace(req.Expr) == "" {
		return nil, nil, fmt.Errorf("%w: expr is required", ErrBadRequest)
	}
	page, err := s.Load(ctx, req.PageRef)
	if err != nil {
		return nil, nil, err
	}
	resp, ms, err := s.query(page, req.Expr, req.Limit, false)
	if err != nil {
		return nil, nil, err
	}
	highlight.EnsureStyles(page.Doc)
	highlight.Mark(ms, len(resp.Matches))
	return []byte(dom.OuterHTML(page.Doc)), resp, nil
}

// SaveLocator stores a locator for later verification.
func (s *Service) SaveLocator(ctx context.Context, req *SaveLocatorRequest) (*catalog.Locator, error) {
	l := &catalog.Locator{Name: req.Name, PageURL: req.URL}

	if req.Value != "" {
		loc, err := buildLocator(req.Kind, req.Value, 1)
		if err != nil {
			return nil, err
		}
		page, err := s.Load(ctx, req.PageRef)
		if err != nil {
			return nil, err
		}
		gen, err := s.generate(page, loc)
		if err != nil {
			return nil, err
		}
		p := gen.Elements[0]
		l.FullPath, l.OptimizedPath, l.Strategy = p.FullPath, p.OptimizedPath, string(p.Strategy)
		l.LastCount = 1
		if l.PageURL == "" {
			l.PageURL = page.URL
		}
	} else {
		if req.FullPath == "" || req.OptimizedPath == "" {
			return nil, fmt.Errorf("%w: kind/value or full_path and optimized_path are required", ErrBadRequest)
		}
		l.FullPath, l.OptimizedPath = req.FullPath, req.OptimizedPath
		if l.PageURL == "" && req.Path != "" && req.Path != "-" {
			l.PageURL = "file://" + req.Path
		}
	}
	if l.PageURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrBadRequest)
	}

	if err := s.store.Insert(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info("inspector: locator saved", "id", l.ID, "page", l.PageURL, "strategy", l.Strategy)
	return l, nil
}

// ListLocators lists saved locators, filtered by page when set.
func (s *Service) ListLocators(ctx context.Context, req *ListLocatorsRequest) ([]*catalog.Locator, error) {
	return s.store.List(ctx, req.PageURL)
}

// GetLocator returns one saved locator.
func (s *Service) GetLocator(ctx context.Context, req *LocatorIDRequest) (*catalog.Locator, error) {
	return s.store.Get(ctx, req.ID)
}

// VerifyLocator reloads the locator's page, re-evaluates both paths and
// records the outcome. Load failures are recorded as failed checks.
func (s *Service) VerifyLocator(ctx context.Context, req *VerifyLocatorRequest) (*VerifyResult, error) {
	l, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	ref := req.Page
	if ref.URL == "" && ref.Path == "" && ref.HTML == "" {
		if strings.HasPrefix(l.PageURL, "file://") {
			ref.Path = strings.TrimPrefix(l.PageURL, "file://")
		} else {
			ref.URL = l.PageURL
		}
	}

	res := &VerifyResult{}
	page, err := s.Load(ctx, ref)
	if fetcher.IsRefused(err) {
		return nil, err
	}
	if err != nil {
		res.Error = err.Error()
	} else {
		opt := xpathgen.Evaluate(l.OptimizedPath, page.Doc)
		full := xpathgen.Evaluate(l.FullPath, page.Doc)
		res.OptimizedCount, res.FullCount = opt.Count, full.Count
		res.OK = opt.Err == nil && opt.Count == 1
		res.Consistent = res.OK && full.Unique(opt.Nodes[0])
		if opt.Err != nil {
			res.Error = opt.Err.Error()
		}
	}

	updated, err := s.store.RecordCheck(ctx, l.ID, res.OptimizedCount, res.OK)
	if err != nil {
		return nil, err
	}
	res.Locator = updated
	s.logger.Info("inspector: locator verified", "id", l.ID, "ok", res.OK, "count", res.OptimizedCount)
	return res, nil
}

// DeleteLocator removes a saved locator.
func (s *Service) DeleteLocator(ctx context.Context, req *LocatorIDRequest) (*DeleteResponse, error) {
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return nil, err
	}
	return &DeleteResponse{ID: req.ID, Deleted: true}, nil
}

func buildLocator(kind, value string, limit int) (locate.Locator, error) {
	if kind == "" {
		kind = string(locate.KindCSS)
	}
	k, err := locate.ParseKind(kind)
	if err != nil {
		return locate.Locator{}, err
	}
	if strings.TrimSpace(value) == "" {
		return locate.Locator{}, fmt.Errorf("%w: value is required", ErrBadRequest)
	}
	return locate.Locator{Kind: k, Value: value, Limit: limit}, nil
}

func shortText(n *html.Node, limit int) string {
	t := strings.Join(strings.Fields(dom.TextContent(n)), " ")
	if utf8.RuneCountInString(t) > limit {
		t = string([]rune(t)[:limit]) + "…"
	}
	return t
}
