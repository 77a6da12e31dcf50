package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/agenda"
	"github.com/hyperengineering/agenda/internal/ics"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Find overlapping sessions in a schedule",
	Long: `Report every pair of sessions that overlap on a shared day.

The schedule is a YAML or JSON list of items, or an iCalendar file:

  - id: go-concurrency
    title: Go Concurrency Patterns
    days: ["2025-06-03"]
    start_time: "10:00"
    duration: "01:00"

Days may be ISO dates, MM-DD in --year, or day numbers. Day numbers count
from January 1 of --year, or from --start when it is given.

Example:
  agenda conflicts --schedule schedule.yaml
  agenda conflicts --schedule schedule.yaml --bookmarked --year 2025
  agenda conflicts --schedule talks.ics --ics clashes.ics`,
	Args: cobra.NoArgs,
	RunE: runConflicts,
}

var (
	conflictsSchedule   string
	conflictsYear       int
	conflictsStart      string
	conflictsBookmarked bool
	conflictsICS        string
)

func init() {
	conflictsCmd.Flags().StringVarP(&conflictsSchedule, "schedule", "s", "", "Schedule file: .yaml, .yml, .json or .ics (required)")
	conflictsCmd.Flags().IntVar(&conflictsYear, "year", 0, "Reference year for day designators (default: current year)")
	conflictsCmd.Flags().StringVar(&conflictsStart, "start", "", "First conference day (YYYY-MM-DD); day numbers count from it")
	conflictsCmd.Flags().BoolVar(&conflictsBookmarked, "bookmarked", false, "Only consider bookmarked sessions")
	conflictsCmd.Flags().StringVar(&conflictsICS, "ics", "", "Also write the schedule and its conflicts to this .ics file")
	_ = conflictsCmd.MarkFlagRequired("schedule")
}

func runConflicts(cmd *cobra.Command, args []string) error {
	year, err := yearFlag(conflictsYear)
	if err != nil {
		return err
	}

	resolve := agenda.YearDays(year)
	if conflictsStart != "" {
		start, err := time.Parse("2006-01-02", conflictsStart)
		if err != nil {
			return fmt.Errorf("invalid --start %q: want YYYY-MM-DD", conflictsStart)
		}
		resolve = agenda.ConferenceDays(start)
	}

	items, err := loadSchedule(conflictsSchedule)
	if err != nil {
		return err
	}

	if conflictsBookmarked {
		if items, err = onlyBookmarked(cmd, items, year); err != nil {
			return err
		}
	}

	conflicts := agenda.DetectConflictsFunc(items, resolve)

	if conflictsICS != "" {
		var buf bytes.Buffer
		if err := ics.WriteCalendar(&buf, items, conflicts, resolve); err != nil {
			return fmt.Errorf("write calendar: %w", err)
		}
		if err := os.WriteFile(conflictsICS, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write calendar: %w", err)
		}
	}

	return outputConflicts(cmd, conflicts)
}

// loadSchedule reads schedule items, picking the decoder by file extension.
func loadSchedule(path string) ([]agenda.ScheduledItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ics", ".ical":
		return ics.ParseSchedule(bytes.NewReader(data))
	case ".yaml", ".yml", ".json":
		return decodeSchedule(data)
	default:
		return nil, fmt.Errorf("unsupported schedule format %q: use .yaml, .json or .ics", filepath.Ext(path))
	}
}

// decodeSchedule accepts a bare list or a document with an "items" list.
// JSON input is read as YAML.
func decodeSchedule(data []byte) ([]agenda.ScheduledItem, error) {
	var items []agenda.ScheduledItem
	if err := yaml.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var doc struct {
		Items []agenda.ScheduledItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	return doc.Items, nil
}

func onlyBookmarked(cmd *cobra.Command, items []agenda.ScheduledItem, year int) ([]agenda.ScheduledItem, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	bookmarks, err := client.Bookmarks(cmd.Context(), year)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(bookmarks))
	for _, b := range bookmarks {
		wanted[b.Slug] = true
	}

	out := items[:0]
	for _, item := range items {
		if wanted[item.ID] {
			out = append(out, item)
		}
	}
	return out, nil
}

func outputConflicts(cmd *cobra.Command, conflicts []agenda.EventConflict) error {
	if outputJSON {
		return outputAsJSON(cmd, conflicts)
	}
	out := cmd.OutOrStdout()
	if len(conflicts) == 0 {
		printSuccess(out, "No conflicts")
		return nil
	}

	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, []string{
			c.Day,
			c.OverlapStart.Format("15:04") + "-" + c.OverlapEnd.Format("15:04"),
			strconv.Itoa(c.OverlapMinutes) + "m",
			itemLabel(c.First),
			itemLabel(c.Second),
		})
	}
	printWarning(out, "%d conflicts", len(conflicts))
	fmt.Fprintln(out, renderTable([]string{"DAY", "OVERLAP", "MIN", "FIRST", "SECOND"}, rows))
	return nil
}

func itemLabel(item agenda.ScheduledItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.ID
}
