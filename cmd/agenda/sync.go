package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize with the agenda server",
	Long: `Upload pending bookmarks and notes, then reconcile with the server.

With --pull, only download the server's records for a year.

Example:
  agenda sync
  agenda sync --pull --year 2025`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var (
	syncPull    bool
	syncYear    int
	syncTimeout time.Duration
)

func init() {
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "Only pull remote records")
	syncCmd.Flags().IntVar(&syncYear, "year", 0, "Year to pull (default: every year)")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 2*time.Minute, "Give up after this long")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsOffline() {
		return fmt.Errorf("server URL not configured: %w", agenda.ErrOffline)
	}

	client, err := agenda.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	start := time.Now()
	if syncPull {
		var refresh *agenda.RefreshReport
		err := runWithSpinner(cmd.ErrOrStderr(), "Pulling from server", func() error {
			var err error
			refresh, err = client.Refresh(ctx, syncYear)
			return err
		})
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		return outputRefresh(cmd, refresh, time.Since(start))
	}

	var report *agenda.SyncReport
	err = runWithSpinner(cmd.ErrOrStderr(), "Synchronizing", func() error {
		var err error
		report, err = client.Sync(ctx)
		return err
	})
	if report != nil {
		if outErr := outputSyncReport(cmd, report, time.Since(start)); outErr != nil {
			return outErr
		}
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func outputRefresh(cmd *cobra.Command, r *agenda.RefreshReport, took time.Duration) error {
	if outputJSON {
		return outputAsJSON(cmd, r)
	}
	out := cmd.OutOrStdout()
	for _, row := range []struct {
		name  string
		stats agenda.ReconcileStats
	}{{"Bookmarks", r.Bookmarks}, {"Notes", r.Notes}} {
		s := row.stats
		printInfo(out, "%s: %d created, %d updated, %d unchanged, %d held", row.name, s.Created, s.Updated, s.Unchanged, s.Held)
		if s.Failed > 0 {
			printWarning(out, "%s: %d failed", row.name, s.Failed)
		}
	}
	printMuted(out, "took %s", took.Round(time.Millisecond))
	return nil
}
