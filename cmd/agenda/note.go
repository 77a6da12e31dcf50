package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage session notes",
	Long: `Write notes against sessions. Notes may use markdown and are rendered
when printed to a terminal.

Example:
  agenda note add go-concurrency --text "Use **errgroup** for fan-out"
  agenda note add go-concurrency --at 754 --text "demo starts here"
  echo "from stdin" | agenda note add go-concurrency
  agenda note edit 01J9Z... --text "revised"
  agenda note rm 01J9Z...
  agenda note ls --slug go-concurrency`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Add a note to a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteAdd,
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace a note's text",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteEdit,
}

var noteRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a note",
	Long: `Delete a note. A note that was already uploaded is deleted on the
server first, which needs a reachable server.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteRm,
}

var noteLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List notes",
	Args:    cobra.NoArgs,
	RunE:    runNoteLs,
}

var (
	noteYear   int
	noteText   string
	noteAt     int
	noteSlug   string
	noteAll    bool
	noteStdin  io.Reader = os.Stdin
	noteNoTime bool
)

func init() {
	noteCmd.PersistentFlags().IntVar(&noteYear, "year", 0, "Conference year (default: current year)")
	for _, c := range []*cobra.Command{noteAddCmd, noteEditCmd} {
		c.Flags().StringVarP(&noteText, "text", "t", "", "Note text (default: read from stdin)")
		c.Flags().IntVar(&noteAt, "at", 0, "Position in the session recording, in seconds")
	}
	noteEditCmd.Flags().BoolVar(&noteNoTime, "clear-at", false, "Remove the recording position")
	noteLsCmd.Flags().StringVar(&noteSlug, "slug", "", "Only notes for this session")
	noteLsCmd.Flags().BoolVar(&noteAll, "all", false, "List every year")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteEditCmd)
	noteCmd.AddCommand(noteRmCmd)
	noteCmd.AddCommand(noteLsCmd)
}

// readNoteText returns --text, or stdin when the flag is absent.
func readNoteText(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("text") {
		return noteText, nil
	}
	data, err := io.ReadAll(noteStdin)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	year, err := yearFlag(noteYear)
	if err != nil {
		return err
	}
	text, err := readNoteText(cmd)
	if err != nil {
		return err
	}
	var offset *int
	if cmd.Flags().Changed("at") {
		at := noteAt
		offset = &at
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.AddNote(cmd.Context(), year, args[0], text, offset)
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, n)
	}
	printSuccess(cmd.OutOrStdout(), "Added note %s to %s (%d)", n.ID, n.Slug, n.Year)
	return nil
}

func runNoteEdit(cmd *cobra.Command, args []string) error {
	text, err := readNoteText(cmd)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	existing, err := client.Store().Note(args[0])
	if err != nil {
		return err
	}
	offset := existing.TimeOffset
	switch {
	case noteNoTime:
		offset = nil
	case cmd.Flags().Changed("at"):
		at := noteAt
		offset = &at
	}

	n, err := client.EditNote(cmd.Context(), args[0], text, offset)
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, n)
	}
	printSuccess(cmd.OutOrStdout(), "Updated note %s", n.ID)
	return nil
}

func runNoteRm(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	// Deleting an uploaded note needs a fresh connectivity reading.
	client.HealthCheck(cmd.Context())

	if err := client.DeleteNote(cmd.Context(), args[0]); err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, map[string]string{"deleted": args[0]})
	}
	printSuccess(cmd.OutOrStdout(), "Deleted note %s", args[0])
	return nil
}

func runNoteLs(cmd *cobra.Command, args []string) error {
	year := 0
	if !noteAll {
		var err error
		if year, err = yearFlag(noteYear); err != nil {
			return err
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	notes, err := client.Notes(cmd.Context(), year, noteSlug)
	if err != nil {
		return err
	}
	return outputNotes(cmd, notes)
}
