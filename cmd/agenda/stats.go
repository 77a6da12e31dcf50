package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long: `Display statistics about the local store.

Example:
  agenda stats
  agenda stats --health`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var statsHealth bool

func init() {
	statsCmd.Flags().BoolVar(&statsHealth, "health", false, "Include health check")
}

type statsOutput struct {
	*agenda.StoreStats
	Owner  string               `json:"owner"`
	Path   string               `json:"path"`
	Health *agenda.HealthStatus `json:"health,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	result := statsOutput{StoreStats: stats, Owner: client.Owner(), Path: client.Store().Path()}
	if statsHealth {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		health := client.HealthCheck(ctx)
		result.Health = &health
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	owner := result.Owner
	if owner == "" {
		owner = "(not signed in)"
	}
	lastSync := "never"
	if !stats.LastSync.IsZero() {
		lastSync = fmt.Sprintf("%s (%s ago)", stats.LastSync.Format(time.RFC3339), time.Since(stats.LastSync).Round(time.Minute))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Owner:          %s\n", owner)
	fmt.Fprintf(&b, "Database:       %s\n", result.Path)
	fmt.Fprintf(&b, "Bookmarks:      %d\n", stats.BookmarkCount)
	fmt.Fprintf(&b, "Notes:          %d\n", stats.NoteCount)
	fmt.Fprintf(&b, "Pending sync:   %d\n", stats.PendingSync)
	fmt.Fprintf(&b, "Schema version: %s\n", stats.SchemaVersion)
	fmt.Fprintf(&b, "Last sync:      %s", lastSync)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderPanel("Local Store Statistics", b.String()))

	if h := result.Health; h != nil {
		fmt.Fprintln(out)
		if h.Healthy {
			printSuccess(out, "Healthy")
		} else {
			printError(out, "Unhealthy")
		}
		fmt.Fprintf(out, "  Store OK:         %v\n", h.StoreOK)
		fmt.Fprintf(out, "  Server reachable: %v\n", h.ServerReachable)
		if h.Error != "" {
			fmt.Fprintf(out, "  Error:            %s\n", scrubSensitiveData(h.Error))
		}
	}
	return nil
}
