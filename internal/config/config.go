package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/urlrisk/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "urlrisk"

	// DefaultNavigationTimeout is the hard limit for loading a page. Slow or
	// adversarial sites fail the scan once it passes.
	DefaultNavigationTimeout = 60 * time.Second

	// DefaultIdleTimeout bounds the best-effort wait for network quiescence
	// after the DOM is ready.
	DefaultIdleTimeout = 5 * time.Second

	// DefaultPortTimeout is the per-port TCP connect timeout.
	DefaultPortTimeout = 2 * time.Second

	// DefaultDNSTimeout bounds the DNS lookup.
	DefaultDNSTimeout = 5 * time.Second

	// DefaultWhoisTimeout bounds the WHOIS query, which may follow a referral.
	DefaultWhoisTimeout = 10 * time.Second

	// DefaultTLSTimeout bounds the TLS handshake.
	DefaultTLSTimeout = 10 * time.Second

	// DefaultCaptureRetries is how often a capture is retried after the page's
	// execution context was destroyed by a redirect.
	DefaultCaptureRetries = 3

	// DefaultRetryBackoff is the pause between capture retries.
	DefaultRetryBackoff = time.Second

	// DefaultCacheSize is the maximum number of cached results.
	DefaultCacheSize = 50

	// DefaultCacheEvictBatch is how many of the oldest results are evicted
	// together when the cache is full.
	DefaultCacheEvictBatch = 10

	// DefaultCacheTTL is how long a cached result is served.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultConcurrency is the number of URLs scanned at once. Each scan
	// runs its own Chrome process.
	DefaultConcurrency = 2

	// DefaultServerAddr is the listen address of `urlrisk serve`.
	DefaultServerAddr = "127.0.0.1:8080"

	// DefaultRateLimit is the sustained number of scans per second the
	// API server accepts.
	DefaultRateLimit = 1.0

	// DefaultRateBurst is the number of scans the API server accepts at once.
	DefaultRateBurst = 5

	// DefaultHistoryRetention is how long scan history is kept.
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

// Config holds all configuration options for urlrisk.
// It is populated from defaults, the config file and CLI flags, then
// passed to the components that need it.
type Config struct {
	// NavigationTimeout is the hard limit for loading a page.
	NavigationTimeout time.Duration

	// IdleTimeout bounds the wait for network idle after the DOM is ready.
	IdleTimeout time.Duration

	// PortTimeout is the per-port connect timeout of the port prober.
	PortTimeout time.Duration

	// DNSTimeout, WhoisTimeout and TLSTimeout bound the intelligence probes.
	DNSTimeout   time.Duration
	WhoisTimeout time.Duration
	TLSTimeout   time.Duration

	// CaptureRetries is how often a capture is retried after context loss.
	CaptureRetries int

	// RetryBackoff is the pause between capture retries.
	RetryBackoff time.Duration

	// CacheSize is the maximum number of cached results.
	CacheSize int

	// CacheEvictBatch is how many entries are evicted when the cache is full.
	CacheEvictBatch int

	// CacheTTL is how long a result is served from the cache.
	CacheTTL time.Duration

	// Concurrency is the number of URLs scanned at once.
	Concurrency int

	// Headless runs Chrome without a window. Disable it to watch a scan.
	Headless bool

	// UserAgent overrides the browser user agent. Empty keeps the default.
	UserAgent string

	// ChromePath is the Chrome binary. Empty lets chromedp find one.
	ChromePath string

	// Screenshot enables screenshot capture.
	Screenshot bool

	// DBDir is the directory of the scan history database.
	// Defaults to XDG data directory (~/.local/share/urlrisk on Linux).
	DBDir string

	// SaveHistory stores every fresh scan in the history database.
	SaveHistory bool

	// HistoryRetention is how long stored scans are kept. Zero keeps them forever.
	HistoryRetention time.Duration

	// ServerAddr is the listen address of the API server.
	ServerAddr string

	// RateLimit and RateBurst throttle scans requested through the API server.
	RateLimit float64
	RateBurst int

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// File is the loaded configuration file. Nil when none was found.
	File *File

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; neither means the plain text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// FailOn makes the scan command exit non-zero when a verdict reaches
	// this threat level. Empty disables it.
	FailOn string

	// Targets is the list of URLs to scan.
	Targets []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		NavigationTimeout: DefaultNavigationTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		PortTimeout:       DefaultPortTimeout,
		DNSTimeout:        DefaultDNSTimeout,
		WhoisTimeout:      DefaultWhoisTimeout,
		TLSTimeout:        DefaultTLSTimeout,
		CaptureRetries:    DefaultCaptureRetries,
		RetryBackoff:      DefaultRetryBackoff,
		CacheSize:         DefaultCacheSize,
		CacheEvictBatch:   DefaultCacheEvictBatch,
		CacheTTL:          DefaultCacheTTL,
		Concurrency:       DefaultConcurrency,
		Headless:          true,
		Screenshot:        true,
		DBDir:             XDGDataDir(),
		SaveHistory:       true,
		HistoryRetention:  DefaultHistoryRetention,
		ServerAddr:        DefaultServerAddr,
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
	}
}

// XDGDataDir returns the XDG data directory for urlrisk.
// On Linux: ~/.local/share/urlrisk
// On macOS: ~/Library/Application Support/urlrisk
// On Windows: %LOCALAPPDATA%\urlrisk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for urlrisk.
// On Linux: ~/.config/urlrisk
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for urlrisk.
// On Linux: ~/.cache/urlrisk
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the settings shared by every command and returns the
// first problem found.
func (c *Config) Validate() error {
	for _, d := range []time.Duration{
		c.NavigationTimeout, c.IdleTimeout, c.PortTimeout,
		c.DNSTimeout, c.WhoisTimeout, c.TLSTimeout, c.CacheTTL,
	} {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	if c.CaptureRetries < 0 {
		return ErrInvalidRetries
	}
	if c.RetryBackoff < 0 {
		return ErrInvalidBackoff
	}
	if c.CacheSize <= 0 || c.CacheEvictBatch <= 0 || c.CacheEvictBatch > c.CacheSize {
		return ErrInvalidCacheSize
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return ErrInvalidRateLimit
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.FailOn != "" {
		if _, err := model.ParseThreatLevel(c.FailOn); err != nil {
			return ErrInvalidFailOn
		}
	}
	return nil
}

// ValidateScan is Validate plus the checks of the scan command.
func (c *Config) ValidateScan() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.Validate()
}

// DBPath returns the path of the history database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, "history.db")
}
