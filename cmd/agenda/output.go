package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr, ensuring no API keys are leaked.
func outputError(w io.Writer, err error) {
	msg := scrubSensitiveData(err.Error())
	if isTTY() {
		fmt.Fprintln(w, renderErrorPanel(msg, "", hintFor(err)))
		return
	}
	fmt.Fprintf(w, "Error: %s\n", msg)
}

// scrubSensitiveData removes the configured API key from messages.
func scrubSensitiveData(msg string) string {
	if key := settings.GetString(keyAPIKey); key != "" && strings.Contains(msg, key) {
		msg = strings.ReplaceAll(msg, key, "[REDACTED]")
	}
	return msg
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, agenda.ErrOffline):
		return "Set --server-url and --api-key, or check your connection"
	case errors.Is(err, agenda.ErrNoOwner):
		return "Pass --owner or set AGENDA_OWNER"
	}
	return ""
}

func outputBookmarks(cmd *cobra.Command, bookmarks []agenda.Bookmark) error {
	if outputJSON {
		return outputAsJSON(cmd, bookmarks)
	}
	out := cmd.OutOrStdout()
	if len(bookmarks) == 0 {
		printMuted(out, "No bookmarks.")
		return nil
	}

	rows := make([][]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		rows = append(rows, []string{
			strconv.Itoa(b.Year), b.Slug, string(b.Kind), syncState(b.ExistsOnServer),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"YEAR", "SLUG", "KIND", "SYNC"}, rows))
	return nil
}

func outputNotes(cmd *cobra.Command, notes []agenda.Note) error {
	if outputJSON {
		return outputAsJSON(cmd, notes)
	}
	out := cmd.OutOrStdout()
	if len(notes) == 0 {
		printMuted(out, "No notes.")
		return nil
	}

	for i, n := range notes {
		heading := fmt.Sprintf("%s  %d/%s", n.ID, n.Year, n.Slug)
		if n.TimeOffset != nil {
			heading += " @ " + (time.Duration(*n.TimeOffset) * time.Second).String()
		}
		printLabel(out, heading)
		fmt.Fprintf(out, "  %s\n", mutedText(syncState(n.ExistsOnServer)))
		fmt.Fprintln(out, renderMarkdown(n.Text))
		if i < len(notes)-1 {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func outputSyncReport(cmd *cobra.Command, report *agenda.SyncReport, took time.Duration) error {
	if outputJSON {
		return outputAsJSON(cmd, struct {
			*agenda.SyncReport
			DurationMs int64 `json:"duration_ms"`
		}{report, took.Milliseconds()})
	}

	out := cmd.OutOrStdout()
	for _, r := range []struct {
		name   string
		result agenda.SyncResult
	}{{"Bookmarks", report.Bookmarks}, {"Notes", report.Notes}} {
		if r.result.Success {
			printSuccess(out, "%s: %d synced", r.name, r.result.SyncedCount)
			continue
		}
		printWarning(out, "%s: %d synced, %d failed", r.name, r.result.SyncedCount, len(r.result.Errors))
		for _, e := range r.result.Errors {
			printMuted(out, "    %s", scrubSensitiveData(e))
		}
	}
	printMuted(out, "took %s", took.Round(time.Millisecond))
	return nil
}

func syncState(onServer bool) string {
	if onServer {
		return "synced"
	}
	return "pending"
}

func mutedText(s string) string {
	if isTTY() {
		return mutedStyle.Render(s)
	}
	return s
}
