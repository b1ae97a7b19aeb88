package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitThreshold is the exit code when a verdict reaches --fail-on.
const exitThreshold = 2

// NewRootCmd creates the root command for urlrisk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urlrisk",
		Short: "Deep risk assessment for URLs",
		Long: `urlrisk assesses how risky a URL is to visit.

It renders the page in headless Chrome, records its network activity,
inspects the DOM, and probes the host's DNS, WHOIS registration, TLS
certificate and open ports. The findings become a security score (0-100)
and a threat verdict (safe, suspicious, dangerous) with a 0-10 threat score.

Chrome or Chromium must be installed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .urlrisk.yaml in current or home directory)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, ErrThresholdReached) {
			os.Exit(exitThreshold)
		}
		os.Exit(1)
	}
}
