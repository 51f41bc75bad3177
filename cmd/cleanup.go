package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookwyrm/internal/domain"
)

var cleanupFlags struct {
	days   int
	dryRun bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-deleted-books",
	Short: "Permanently delete books that were soft-deleted more than N days ago",
	Long: `Permanently delete books that have been in the trash longer than the
retention window, together with their photos.

Examples:
  # See what would be deleted
  bookwyrm cleanup-deleted-books --dry-run

  # Delete books trashed more than 60 days ago
  bookwyrm cleanup-deleted-books --days 60`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&cleanupFlags.days, "days", domain.DefaultRetentionDays, "delete books soft-deleted more than this many days ago")
	cleanupCmd.Flags().BoolVar(&cleanupFlags.dryRun, "dry-run", false, "show what would be deleted without deleting")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	days := cleanupFlags.days
	if !cmd.Flags().Changed("days") {
		days = cfg.Trash.RetentionDays
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.cleanup.Sweep(ctx, days, cleanupFlags.dryRun)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d books could not be deleted", len(report.Failures), len(report.Candidates))
	}
	return nil
}

func printReport(w io.Writer, report *domain.SweepReport) {
	fmt.Fprintln(w, report.Summary())

	if report.DryRun {
		for _, c := range report.Candidates {
			fmt.Fprintf(w, "- %q by %s (deleted %d days ago)\n", c.Title, c.Author, c.DaysInTrash)
		}
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "! %q (%s): %s\n", f.Title, f.ID, f.Error)
	}
}
