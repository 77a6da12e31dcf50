package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage bookmarked sessions and tracks",
	Long: `Bookmark sessions or tracks for a conference year.

Bookmarks are saved locally and uploaded on the next sync.

Example:
  agenda bookmark add go-concurrency --year 2025
  agenda bookmark add backend --track
  agenda bookmark rm go-concurrency --year 2025
  agenda bookmark ls --json`,
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Bookmark a session or track",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarkAdd,
}

var bookmarkRmCmd = &cobra.Command{
	Use:     "rm <slug>",
	Aliases: []string{"remove"},
	Short:   "Remove a bookmark",
	Args:    cobra.ExactArgs(1),
	RunE:    runBookmarkRm,
}

var bookmarkLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List bookmarks",
	Args:    cobra.NoArgs,
	RunE:    runBookmarkLs,
}

var (
	bookmarkYear  int
	bookmarkTrack bool
	bookmarkAll   bool
)

func init() {
	bookmarkCmd.PersistentFlags().IntVar(&bookmarkYear, "year", 0, "Conference year (default: current year)")
	bookmarkAddCmd.Flags().BoolVar(&bookmarkTrack, "track", false, "Bookmark a whole track instead of a session")
	bookmarkLsCmd.Flags().BoolVar(&bookmarkAll, "all", false, "List every year")

	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkRmCmd)
	bookmarkCmd.AddCommand(bookmarkLsCmd)
}

func runBookmarkAdd(cmd *cobra.Command, args []string) error {
	year, err := yearFlag(bookmarkYear)
	if err != nil {
		return err
	}
	kind := agenda.KindEvent
	if bookmarkTrack {
		kind = agenda.KindTrack
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	b, err := client.Bookmark(cmd.Context(), year, args[0], kind)
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, b)
	}
	printSuccess(cmd.OutOrStdout(), "Bookmarked %s (%d)", b.Slug, b.Year)
	return nil
}

func runBookmarkRm(cmd *cobra.Command, args []string) error {
	year, err := yearFlag(bookmarkYear)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	b, err := client.Unbookmark(cmd.Context(), year, args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, b)
	}
	printSuccess(cmd.OutOrStdout(), "Removed bookmark %s (%d)", b.Slug, b.Year)
	return nil
}

func runBookmarkLs(cmd *cobra.Command, args []string) error {
	year := 0
	if !bookmarkAll {
		var err error
		if year, err = yearFlag(bookmarkYear); err != nil {
			return err
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	bookmarks, err := client.Bookmarks(cmd.Context(), year)
	if err != nil {
		return err
	}
	return outputBookmarks(cmd, bookmarks)
}
