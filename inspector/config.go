// CLAUDE:SUMMARY Inspector configuration: YAML file, optional .env, SUPERX_* overrides and defaults.
package inspector

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/superx/highlight"
	"github.com/hazyhaar/superx/xpathgen"
)

// Config holds all inspector configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	Listen    string          `yaml:"listen"`
	LogLevel  string          `yaml:"log_level"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Browser   BrowserConfig   `yaml:"browser"`
	Query     QueryConfig     `yaml:"query"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Live      LiveConfig      `yaml:"live"`
	Audit     AuditConfig     `yaml:"audit"`
}

// FetchConfig controls HTTP acquisition.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Render    string        `yaml:"render"` // http, browser, auto

	// FilesRoot confines path sources to a directory. Empty allows any path
	// to local callers and none to network callers unless AllowFiles.
	FilesRoot  string `yaml:"files_root"`
	AllowFiles bool   `yaml:"allow_files"`

	// BlockPrivate guards every caller. Network callers are guarded unless
	// AllowPrivate.
	BlockPrivate bool `yaml:"block_private"`
	AllowPrivate bool `yaml:"allow_private"`
}

// BrowserConfig controls headless Chrome. Disabled unless Enabled or
// RemoteURL is set.
type BrowserConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RemoteURL        string        `yaml:"remote_url"`
	Bin              string        `yaml:"bin"`
	DisableStealth   bool          `yaml:"disable_stealth"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	Settle           time.Duration `yaml:"settle"`
}

// QueryConfig bounds query output.
type QueryConfig struct {
	MaxHighlight int `yaml:"max_highlight"`
	PreviewCount int `yaml:"preview_count"`
	PreviewRunes int `yaml:"preview_runes"`
}

// OptimizerConfig tunes the short-path heuristics.
type OptimizerConfig struct {
	TextLimit       int      `yaml:"text_limit"`
	Attributes      []string `yaml:"attributes"`
	ExcludedClasses []string `yaml:"excluded_classes"`
}

// LiveConfig controls websocket sessions.
type LiveConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// AuditConfig controls the operation audit trail stored in the catalog.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	Buffer  int  `yaml:"buffer"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "superx.db"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8086"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 << 20
	}
	if c.Fetch.Render == "" {
		c.Fetch.Render = "auto"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Query.MaxHighlight <= 0 {
		c.Query.MaxHighlight = highlight.DefaultLimit
	}
	if c.Query.PreviewCount <= 0 {
		c.Query.PreviewCount = 10
	}
	if c.Query.PreviewRunes <= 0 {
		c.Query.PreviewRunes = highlight.DefaultPreviewRunes
	}
	if c.Optimizer.TextLimit <= 0 {
		c.Optimizer.TextLimit = xpathgen.DefaultTextLimit
	}
	if c.Live.Debounce <= 0 {
		c.Live.Debounce = 300 * time.Millisecond
	}
}

// LoadConfig loads .env from the working directory when present, reads the
// YAML file at path (skipped when path is empty), applies SUPERX_*
// environment overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("inspector: config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("inspector: config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("SUPERX_DB_PATH", &c.DBPath)
	str("SUPERX_LISTEN", &c.Listen)
	str("SUPERX_LOG_LEVEL", &c.LogLevel)
	str("SUPERX_USER_AGENT", &c.Fetch.UserAgent)
	str("SUPERX_RENDER", &c.Fetch.Render)
	str("SUPERX_FILES_ROOT", &c.Fetch.FilesRoot)
	str("SUPERX_BROWSER_URL", &c.Browser.RemoteURL)
	str("SUPERX_BROWSER_BIN", &c.Browser.Bin)

	if v := getenv("SUPERX_BROWSER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("inspector: SUPERX_BROWSER: %w", err)
		}
		c.Browser.Enabled = b
	}
	if v := getenv("SUPERX_BLOCK_PRIVATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("inspector: SUPERX_BLOCK_PRIVATE: %w", err)
		}
		c.Fetch.BlockPrivate = b
	}
	if v := getenv("SUPERX_AUDIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("inspector: SUPERX_AUDIT: %w", err)
		}
		c.Audit.Enabled = b
	}
	if v := getenv("SUPERX_MAX_HIGHLIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("inspector: SUPERX_MAX_HIGHLIGHT: %w", err)
		}
		c.Query.MaxHighlight = n
	}
	if v := getenv("SUPERX_LIVE_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("inspector: SUPERX_LIVE_DEBOUNCE: %w", err)
		}
		c.Live.Debounce = d
	}
	if v := getenv("SUPERX_BLOCK"); v != "" {
		c.Browser.ResourceBlocking = strings.Split(v, ",")
	}
	return nil
}

// BrowserWanted reports whether a headless browser should be wired.
func (c *Config) BrowserWanted() bool {
	return c.Browser.Enabled || c.Browser.RemoteURL != ""
}
