package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlrisk/internal/browser"
	"github.com/nao1215/urlrisk/internal/cache"
	"github.com/nao1215/urlrisk/internal/config"
	"github.com/nao1215/urlrisk/internal/inspect"
	"github.com/nao1215/urlrisk/internal/log"
	"github.com/nao1215/urlrisk/internal/pipeline"
	"github.com/nao1215/urlrisk/internal/probe"
	"github.com/nao1215/urlrisk/internal/report"
)

// loadConfig builds the configuration from defaults, the configuration
// file and the persistent flags, in increasing precedence. Command flags
// are applied by the callers.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	// The persistent flags are absent when a subcommand runs without its root.
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		cfg.Verbose = f.Value.String() == "true"
	}
	if f := cmd.Flags().Lookup("config"); f != nil {
		cfg.ConfigFilePath = f.Value.String()
	}

	// An explicit path must exist; otherwise a missing file means defaults.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		f.Apply(cfg)
		cfg.File = f
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}
	return cfg, nil
}

func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	logger := log.NewSecureLogger(w, verbose)
	slog.SetDefault(logger)
	return logger
}

// newEngine wires the scan engine from cfg.
func newEngine(cfg *config.Config, history pipeline.History, logger *slog.Logger) *pipeline.Engine {
	launcher := browser.NewChrome(
		browser.WithHeadless(cfg.Headless),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithExecPath(cfg.ChromePath),
		browser.WithIdleTimeout(cfg.IdleTimeout),
		browser.WithLogger(logger),
	)
	gatherer := probe.NewGatherer(
		probe.WithDNS(probe.NewDNSProbe(probe.WithDNSTimeout(cfg.DNSTimeout), probe.WithDNSLogger(logger))),
		probe.WithWhois(probe.NewWhoisProbe(probe.WithWhoisTimeout(cfg.WhoisTimeout), probe.WithWhoisLogger(logger))),
		probe.WithTLS(probe.NewTLSProbe(probe.WithTLSTimeout(cfg.TLSTimeout), probe.WithTLSLogger(logger))),
		probe.WithPortScanner(probe.NewPortProber(probe.WithPortTimeout(cfg.PortTimeout), probe.WithPortLogger(logger))),
		probe.WithGathererLogger(logger),
	)
	resultCache := cache.New(
		cache.WithMaxEntries(cfg.CacheSize),
		cache.WithEvictBatch(cfg.CacheEvictBatch),
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger),
	)

	opts := []pipeline.EngineOption{
		pipeline.WithLauncher(launcher),
		pipeline.WithGatherer(gatherer),
		pipeline.WithCache(resultCache),
		pipeline.WithInspector(inspect.New(inspect.WithLogger(logger))),
		pipeline.WithNavigationTimeout(cfg.NavigationTimeout),
		pipeline.WithCaptureRetries(cfg.CaptureRetries),
		pipeline.WithRetryBackoff(cfg.RetryBackoff),
		pipeline.WithScreenshots(cfg.Screenshot),
		pipeline.WithHostPolicy(hostPolicy(cfg.File)),
		pipeline.WithEngineLogger(logger),
	}
	if history != nil {
		opts = append(opts, pipeline.WithHistory(history))
	}
	return pipeline.NewEngine(opts...)
}

func hostPolicy(f *config.File) func(string) pipeline.HostPolicy {
	return func(host string) pipeline.HostPolicy {
		hc := f.Host(host)
		return pipeline.HostPolicy{
			Screenshot:        hc.Screenshot,
			NavigationTimeout: hc.NavigationTimeout,
		}
	}
}

// openOutput returns the report destination: the file at path, created
// with its directories, or stdout when path is empty.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports can include cookies and response headers.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-chosen report path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter picks the writer for the configured format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
