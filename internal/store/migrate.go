package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultLegacyDBPath returns where single-profile versions kept the database:
// ~/.agenda/agenda.db.
func DefaultLegacyDBPath() string {
	return filepath.Join(DefaultRoot(), DBFileName)
}

// MigrationResult contains the result of a migration operation.
type MigrationResult struct {
	// Migrated is true if migration occurred, false if no migration needed.
	Migrated bool
	// SourcePath is the path of the database that was migrated (empty if not migrated).
	SourcePath string
	// DestPath is the path of the new database (empty if not migrated).
	DestPath string
}

// MigrateLegacyDatabase copies a pre-profile database into the local profile.
//
// legacyPath is checked first (typically AGENDA_DB_PATH); when empty,
// DefaultLegacyDBPath is used. Nothing happens if the local profile already
// has a database or no legacy database exists.
func MigrateLegacyDatabase(legacyPath, profileRoot string) (MigrationResult, error) {
	destPath := ProfileDBPath(profileRoot, LocalProfile)
	if _, err := os.Stat(destPath); err == nil {
		return MigrationResult{}, nil
	}

	sourcePath := legacyPath
	if sourcePath == "" {
		sourcePath = DefaultLegacyDBPath()
	}
	if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
		return MigrationResult{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return MigrationResult{}, fmt.Errorf("create local profile directory: %w", err)
	}
	if err := copyFile(sourcePath, destPath); err != nil {
		return MigrationResult{}, fmt.Errorf("copy database: %w", err)
	}

	return MigrationResult{
		Migrated:   true,
		SourcePath: sourcePath,
		DestPath:   destPath,
	}, nil
}

// copyFile copies src to dst and syncs it. A partial dst is removed on failure.
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		dest.Close()
		if !success {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(dest, source); err != nil {
		return err
	}
	if err := dest.Sync(); err != nil {
		return err
	}

	success = true
	return nil
}
