package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlrisk/internal/config"
	"github.com/nao1215/urlrisk/internal/database"
	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/pipeline"
)

// ErrThresholdReached is returned by the scan command when a verdict
// reaches the --fail-on level.
var ErrThresholdReached = errors.New("threat level threshold reached")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Assess the risk of one or more URLs",
		Long: `Scan renders each URL in headless Chrome and assesses it.

A URL without a scheme is scanned over https. Results are cached for the
duration of the process and stored in the scan history unless --no-history
is given. Scans that fail (unresolvable host, refused connection, timeout)
still produce a verdict.

Examples:
  # Scan a single URL
  urlrisk scan example.com

  # Scan several URLs, three at a time
  urlrisk scan -n 3 example.com example.org https://example.net/login

  # Read URLs from a file, one per line
  urlrisk scan --list urls.txt

  # Markdown report written to a file
  urlrisk scan --markdown -o report.md example.com

  # Exit with status 2 when any URL is at least suspicious
  urlrisk scan --fail-on suspicious example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("list", "l", "",
		"File with URLs to scan, one per line (# starts a comment)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout,
		"Hard navigation timeout per URL")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of URLs scanned at once")
	cmd.Flags().Int("retries", config.DefaultCaptureRetries,
		"Capture retries after a redirect replaced the page")
	cmd.Flags().Bool("headless", true, "Run Chrome without a window")
	cmd.Flags().String("chrome", "", "Path to the Chrome binary")
	cmd.Flags().String("user-agent", "", "Browser user agent")
	cmd.Flags().Bool("no-screenshot", false, "Do not capture screenshots")
	cmd.Flags().Bool("no-history", false, "Do not store results in the scan history")
	cmd.Flags().String("fail-on", "",
		"Exit with status 2 when a verdict reaches this level (safe, suspicious, dangerous)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateScan(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history pipeline.History
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		history = db

		if cfg.HistoryRetention > 0 {
			pruned, err := db.Prune(ctx, time.Now().Add(-cfg.HistoryRetention))
			if err != nil {
				logger.Warn("failed to prune scan history", "error", err)
			} else if pruned > 0 {
				logger.Debug("pruned scan history", "removed", pruned)
			}
		}
	}

	results := newEngine(cfg, history, logger).ScanBatch(ctx, cfg.Targets, cfg.Concurrency)
	if err := writeResults(cfg, results); err != nil {
		return err
	}
	return checkThreshold(cfg.FailOn, results, logger)
}

// buildScanConfig creates a Config from the configuration file and flags.
// Flags only override the file when set explicitly.
func buildScanConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if cfg.NavigationTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retries") {
		if cfg.CaptureRetries, err = flags.GetInt("retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("chrome") {
		if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if noShot, _ := flags.GetBool("no-screenshot"); noShot {
		cfg.Screenshot = false
	}
	if noHistory, _ := flags.GetBool("no-history"); noHistory {
		cfg.SaveHistory = false
	}

	if cfg.FailOn, err = flags.GetString("fail-on"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	cfg.Targets = append(cfg.Targets, args...)
	list, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if list != "" {
		urls, err := readURLList(list)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, urls...)
	}
	return cfg, nil
}

// readURLList reads one URL per line. Blank lines and lines starting
// with # are skipped.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided list path
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

func writeResults(cfg *config.Config, results []*model.ScanResult) error {
	out, closeOut, err := openOutput(cfg.ReportFile)
	if err != nil {
		return err
	}
	w := newReportWriter(cfg, out)

	if len(results) == 1 {
		_, err = w.Write(results[0])
	} else {
		_, err = w.WriteBatch(results)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// checkThreshold returns ErrThresholdReached when any result is at least
// as severe as failOn. An empty failOn disables the check.
func checkThreshold(failOn string, results []*model.ScanResult, logger *slog.Logger) error {
	if failOn == "" {
		return nil
	}
	threshold, err := model.ParseThreatLevel(failOn)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.ThreatLevel.AtLeast(threshold) {
			logger.Debug("threshold reached", "url", r.URL, "threat_level", r.ThreatLevel, "fail_on", threshold)
			return fmt.Errorf("%w: %s is %s", ErrThresholdReached, r.URL, r.ThreatLevel)
		}
	}
	return nil
}
