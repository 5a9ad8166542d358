package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/inspector"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	config     string
	logLevel   string
	format     string
	db         string
	render     string
	browserURL string
	browser    bool

	// Set by serve and mcp only.
	filesRoot    string
	blockPrivate bool
	audit        bool

	// Set by serve only.
	allowFiles   bool
	allowPrivate bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "superx",
		Short: "Generate, optimize and test XPath locators for HTML pages",
		Long: `superx picks elements on a page and produces two XPath expressions for each:
a full structural path and the shortest expression that still selects the
element alone. It evaluates arbitrary expressions, writes annotated copies
of pages, and keeps a catalog of saved locators that can be re-verified.

A <source> is an http(s) URL, a local HTML file, or - for stdin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.config, "config", "c", "", "config file path (YAML)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVarP(&g.format, "format", "f", "text", "output format: text, json or markdown")
	pf.StringVar(&g.db, "db", "", "locator catalog database path")
	pf.StringVar(&g.render, "render", "", "acquisition mode for URLs: http, browser or auto")
	pf.StringVar(&g.browserURL, "browser-url", "", "DevTools websocket of a remote Chrome")
	pf.BoolVar(&g.browser, "browser", false, "launch a local headless Chrome when needed")

	root.AddCommand(
		newPathCmd(g),
		newQueryCmd(g),
		newLocatorCmd(g),
		newServeCmd(g),
		newMCPCmd(g),
		newAuditCmd(g),
	)
	return root
}

// loadConfig reads the config file and environment, then applies flags.
func (g *globalFlags) loadConfig() (*inspector.Config, error) {
	cfg, err := inspector.LoadConfig(g.config)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.db != "" {
		cfg.DBPath = g.db
	}
	if g.render != "" {
		cfg.Fetch.Render = g.render
	}
	if g.browserURL != "" {
		cfg.Browser.RemoteURL = g.browserURL
	}
	if g.browser {
		cfg.Browser.Enabled = true
	}
	if g.filesRoot != "" {
		cfg.Fetch.FilesRoot = g.filesRoot
	}
	if g.blockPrivate {
		cfg.Fetch.BlockPrivate = true
	}
	if g.audit {
		cfg.Audit.Enabled = true
	}
	if g.allowFiles {
		cfg.Fetch.AllowFiles = true
	}
	if g.allowPrivate {
		cfg.Fetch.AllowPrivate = true
	}
	return cfg, nil
}

// service builds the configured inspector. The caller closes it.
func (g *globalFlags) service(opts ...inspector.Option) (*inspector.Service, *inspector.Config, *slog.Logger, error) {
	if _, err := parseFormat(g.format); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	svc, err := inspector.New(cfg, logger, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, cfg, logger, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// pageRef turns a <source> argument into a page reference.
func pageRef(arg, render string) inspector.PageRef {
	switch {
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		return inspector.PageRef{URL: arg, Render: render}
	default:
		return inspector.PageRef{Path: arg, Render: render}
	}
}

// registerGuards adds the source restrictions used by the server commands.
func (g *globalFlags) registerGuards(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.filesRoot, "files-root", "", "only read path sources under this directory")
	cmd.Flags().BoolVar(&g.blockPrivate, "block-private", false, "refuse URLs on loopback or private networks")
	cmd.Flags().BoolVar(&g.audit, "audit", false, "record every MCP and HTTP operation in the catalog")
}

var errNoLocator = fmt.Errorf("one of --css, --xpath or --text is required")

// locatorFlags selects how an element is picked.
type locatorFlags struct {
	css, xpath, text string
	limit            int
}

func (l *locatorFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVar(&l.css, "css", "", "pick by CSS selector")
	cmd.Flags().StringVar(&l.xpath, "xpath", "", "pick by XPath expression")
	cmd.Flags().StringVar(&l.text, "text", "", "pick by visible text (fuzzy)")
	cmd.MarkFlagsMutuallyExclusive("css", "xpath", "text")
	if required {
		cmd.MarkFlagsOneRequired("css", "xpath", "text")
	}
}

func (l *locatorFlags) kindValue() (string, string, error) {
	switch {
	case l.css != "":
		return "css", l.css, nil
	case l.xpath != "":
		return "xpath", l.xpath, nil
	case l.text != "":
		return "text", l.text, nil
	}
	return "", "", errNoLocator
}
