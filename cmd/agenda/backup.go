package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export bookmarks and notes to a file",
	Long: `Export the signed-in owner's bookmarks and notes.

JSON exports hold only the owner's records. SQLite exports copy the whole
database file.

Example:
  agenda export -o backup.json
  agenda export -o backup.db --format sqlite`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bookmarks and notes from a file",
	Long: `Import records from an export file. Imported records are queued for
upload on the next sync.

Merge strategies:
  skip    - Keep records that already exist
  replace - Overwrite existing records
  merge   - Keep whichever copy was updated last (default)

Format auto-detection:
  .json           -> JSON format
  .db, .sqlite    -> SQLite format

Example:
  agenda import -i backup.json
  agenda import -i backup.json --merge-strategy replace --dry-run
  agenda import -i old.db --from-owner alice@example.com`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var (
	exportOutputPath    string
	exportFormat        string
	importInputPath     string
	importMergeStrategy string
	importDryRun        bool
	importFormat        string
	importFromOwner     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, sqlite")
	_ = exportCmd.MarkFlagRequired("output")

	importCmd.Flags().StringVarP(&importInputPath, "input", "i", "", "Input file path (required)")
	importCmd.Flags().StringVar(&importMergeStrategy, "merge-strategy", "merge", "Merge strategy: skip, replace, merge")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview import without making changes")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Override format detection: json, sqlite")
	importCmd.Flags().StringVar(&importFromOwner, "from-owner", "", "Owner whose records to take from a SQLite source (default: current owner)")
	_ = importCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// ExportResult for JSON output.
type ExportResult struct {
	Owner    string `json:"owner"`
	Format   string `json:"format"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Duration string `json:"duration"`
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != "json" && format != "sqlite" {
		return fmt.Errorf("invalid format %q: must be 'json' or 'sqlite'", exportFormat)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := ensureParentDir(exportOutputPath); err != nil {
		return err
	}

	start := time.Now()
	switch format {
	case "json":
		err = exportJSON(cmd.Context(), client.Store(), client.Owner(), exportOutputPath)
	case "sqlite":
		err = client.Store().ExportSQLite(cmd.Context(), exportOutputPath)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	took := time.Since(start)

	var size int64
	if fi, err := os.Stat(exportOutputPath); err == nil {
		size = fi.Size()
	}

	if outputJSON {
		return outputAsJSON(cmd, ExportResult{
			Owner:    client.Owner(),
			Format:   format,
			FilePath: exportOutputPath,
			FileSize: size,
			Duration: took.Round(time.Millisecond).String(),
		})
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Format:    %s\n", strings.ToUpper(format))
	fmt.Fprintf(&summary, "File size: %s\n", formatBytes(size))
	fmt.Fprintf(&summary, "Duration:  %s\n", took.Round(time.Millisecond))
	fmt.Fprintf(&summary, "Output:    %s", exportOutputPath)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderPanel("Export Summary", summary.String()))
	printSuccess(out, "Export complete")
	return nil
}

// ImportResultOutput for JSON output.
type ImportResultOutput struct {
	InputFile  string   `json:"input_file"`
	Format     string   `json:"format"`
	Strategy   string   `json:"merge_strategy"`
	DryRun     bool     `json:"dry_run"`
	Total      int      `json:"total"`
	Created    int      `json:"created"`
	Merged     int      `json:"merged"`
	Skipped    int      `json:"skipped"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
	Duration   string   `json:"duration"`
}

func runImport(cmd *cobra.Command, args []string) error {
	strategy := agenda.MergeStrategy(strings.ToLower(importMergeStrategy))
	if !strategy.IsValid() {
		return fmt.Errorf("invalid merge strategy %q: must be 'skip', 'replace', or 'merge'", importMergeStrategy)
	}

	if _, err := os.Stat(importInputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", importInputPath)
	}

	format := detectImportFormat(importInputPath)
	if importFormat != "" {
		format = strings.ToLower(importFormat)
	}
	if format != "json" && format != "sqlite" {
		return fmt.Errorf("cannot detect format for %q, use --format to specify", importInputPath)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	if !outputJSON {
		verb := "Importing"
		if importDryRun {
			verb = "Previewing import"
		}
		printInfo(out, "%s from %s (%s, %s)...", verb, importInputPath, strings.ToUpper(format), strategy)
	}

	start := time.Now()
	var result *agenda.ImportResult
	switch format {
	case "json":
		result, err = importJSON(cmd.Context(), client.Store(), client.Owner(), importInputPath, strategy)
	case "sqlite":
		from := importFromOwner
		if from == "" {
			from = client.Owner()
		}
		result, err = importSQLite(cmd.Context(), client.Store(), client.Owner(), from, importInputPath, strategy)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	took := time.Since(start)

	if outputJSON {
		return outputAsJSON(cmd, ImportResultOutput{
			InputFile:  importInputPath,
			Format:     format,
			Strategy:   string(strategy),
			DryRun:     importDryRun,
			Total:      result.Total,
			Created:    result.Created,
			Merged:     result.Merged,
			Skipped:    result.Skipped,
			ErrorCount: len(result.Errors),
			Errors:     result.Errors,
			Duration:   took.Round(time.Millisecond).String(),
		})
	}

	prefix := ""
	if importDryRun {
		prefix = "Would be "
	}
	fmt.Fprintf(out, "  Total:   %d\n", result.Total)
	fmt.Fprintf(out, "  %sCreated: %d\n", prefix, result.Created)
	fmt.Fprintf(out, "  %sMerged:  %d\n", prefix, result.Merged)
	fmt.Fprintf(out, "  %sSkipped: %d\n", prefix, result.Skipped)
	fmt.Fprintf(out, "  Errors:  %d\n", len(result.Errors))

	if len(result.Errors) > 0 {
		printWarning(out, "Errors encountered:")
		const maxErrors = 10
		for i, e := range result.Errors {
			if i >= maxErrors {
				fmt.Fprintf(out, "  ... and %d more errors\n", len(result.Errors)-maxErrors)
				break
			}
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}

	if importDryRun {
		printMuted(out, "Dry-run complete. No changes made.")
	} else {
		printSuccess(out, "Import complete.")
	}
	return nil
}

// ensureParentDir creates the parent directory of path if it doesn't exist.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}

func exportJSON(ctx context.Context, s *agenda.Store, owner, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := s.ExportJSON(ctx, owner, f); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return f.Sync()
}

// detectImportFormat detects the format based on file extension.
func detectImportFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func importJSON(ctx context.Context, s *agenda.Store, owner, inputPath string, strategy agenda.MergeStrategy) (*agenda.ImportResult, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	return s.ImportJSON(ctx, owner, f, strategy, importDryRun)
}

// importSQLite streams fromOwner's records out of another database and into s.
func importSQLite(ctx context.Context, s *agenda.Store, owner, fromOwner, inputPath string, strategy agenda.MergeStrategy) (*agenda.ImportResult, error) {
	src, err := agenda.NewStore(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(src.ExportJSON(ctx, fromOwner, pw))
	}()
	defer pr.Close()

	return s.ImportJSON(ctx, owner, pr, strategy, importDryRun)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
