package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlrisk/internal/database"
	"github.com/nao1215/urlrisk/internal/model"
)

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored scan results",
		Long: `History lists, shows and prunes the scans stored by urlrisk scan and
urlrisk serve. The database lives in the XDG data directory
(~/.local/share/urlrisk/history.db on Linux).`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryPruneCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans, newest first",
		Long: `List prints the most recent scans.

Examples:
  urlrisk history list
  urlrisk history list --url example.com --limit 5`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}
	cmd.Flags().String("url", "", "Only scans of this URL")
	cmd.Flags().IntP("limit", "n", database.DefaultListLimit, "Maximum number of scans")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	rawURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	q := database.Query{Limit: limit}
	if rawURL != "" {
		if q.URL, err = model.NormalizeURL(rawURL); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
	}
	summaries, err := db.Recent(cmd.Context(), q)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scans found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCANNED\tVERDICT\tTHREAT\tSECURITY\tURL")
	for _, s := range summaries {
		verdict := string(s.ThreatLevel)
		if s.Degraded() {
			verdict += " (failed)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/10\t%d\t%s\n",
			s.ID, s.ScanDate.Local().Format(time.DateTime), verdict,
			s.ThreatScore, s.SecurityScore, s.URL)
	}
	return tw.Flush()
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the report of a stored scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	return cmd
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	result, err := db.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no scan with id %s", args[0])
		}
		return err
	}
	return writeResults(cfg, []*model.ScanResult{result})
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old scans",
		Long: `Prune deletes scans older than --older-than. Without the flag the
configured history retention is used.

Examples:
  urlrisk history prune
  urlrisk history prune --older-than 168h`,
		Args: cobra.NoArgs,
		RunE: runHistoryPruneCmd,
	}
	cmd.Flags().Duration("older-than", 0, "Delete scans older than this")
	return cmd
}

func runHistoryPruneCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	age := cfg.HistoryRetention
	if cmd.Flags().Changed("older-than") {
		if age, err = cmd.Flags().GetDuration("older-than"); err != nil {
			return err
		}
	}
	if age <= 0 {
		return errors.New("nothing to prune: retention is disabled and --older-than is not set")
	}

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	n, err := db.Prune(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d scan(s) older than %s\n", n, age)
	return nil
}

// openHistory opens the existing history database of the configured
// data directory.
func openHistory(cmd *cobra.Command) (*database.History, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}
