package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlrisk/internal/config"
	"github.com/nao1215/urlrisk/internal/database"
	"github.com/nao1215/urlrisk/internal/log"
	"github.com/nao1215/urlrisk/internal/pipeline"
	"github.com/nao1215/urlrisk/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		Long: `Serve starts an HTTP API for scanning URLs and reading the scan history.

Routes:
  GET  /healthz
  POST /api/v1/scan            {"url": "example.com"}
  GET  /api/v1/history         ?url=...&limit=...
  GET  /api/v1/history/{id}

Scans are rate limited for all clients together. The server binds to
127.0.0.1 by default; it has no authentication.

Examples:
  urlrisk serve
  urlrisk serve --addr :9000 --rate 0.5 --burst 2`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", config.DefaultServerAddr, "Listen address")
	cmd.Flags().Float64("rate", config.DefaultRateLimit, "Sustained scans per second")
	cmd.Flags().Int("burst", config.DefaultRateBurst, "Scans accepted at once")
	cmd.Flags().Bool("no-history", false, "Do not store or serve the scan history")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		if cfg.ServerAddr, err = flags.GetString("addr"); err != nil {
			return err
		}
	}
	if flags.Changed("rate") {
		if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
			return err
		}
	}
	if flags.Changed("burst") {
		if cfg.RateBurst, err = flags.GetInt("burst"); err != nil {
			return err
		}
	}
	if noHistory, _ := flags.GetBool("no-history"); noHistory {
		cfg.SaveHistory = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{
		server.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		server.WithScanTimeout(cfg.NavigationTimeout + 2*cfg.WhoisTimeout),
		server.WithLogger(logger),
	}
	var history pipeline.History
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		history = db
		opts = append(opts, server.WithHistory(db))
	}

	srv := server.New(newEngine(cfg, history, logger), opts...)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.ServerAddr)
	return srv.ListenAndServe(ctx, cfg.ServerAddr)
}
