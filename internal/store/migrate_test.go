package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/agenda/internal/store"
)

func TestMigrateLegacyDatabase_NoExisting(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	profileRoot := filepath.Join(tmpDir, "profiles")

	result, err := store.MigrateLegacyDatabase("", profileRoot)
	if err != nil {
		t.Fatalf("MigrateLegacyDatabase: %v", err)
	}
	if result.Migrated {
		t.Error("expected migrated=false when no legacy DB")
	}
}

func TestMigrateLegacyDatabase_FromExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	profileRoot := filepath.Join(tmpDir, "profiles")

	legacy := filepath.Join(tmpDir, "old", "agenda.db")
	if err := os.MkdirAll(filepath.Dir(legacy), 0755); err != nil {
		t.Fatalf("create old dir: %v", err)
	}
	if err := os.WriteFile(legacy, []byte("fake-db-content"), 0644); err != nil {
		t.Fatalf("write old db: %v", err)
	}

	result, err := store.MigrateLegacyDatabase(legacy, profileRoot)
	if err != nil {
		t.Fatalf("MigrateLegacyDatabase: %v", err)
	}
	if !result.Migrated {
		t.Fatal("expected migrated=true when legacy DB exists")
	}
	if result.SourcePath != legacy {
		t.Errorf("SourcePath = %q, want %q", result.SourcePath, legacy)
	}

	want := filepath.Join(profileRoot, "local", "agenda.db")
	if result.DestPath != want {
		t.Errorf("DestPath = %q, want %q", result.DestPath, want)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read migrated db: %v", err)
	}
	if string(content) != "fake-db-content" {
		t.Errorf("migrated content = %q", content)
	}
}

func TestMigrateLegacyDatabase_SkipsWhenLocalProfileExists(t *testing.T) {
	tmpDir := t.TempDir()
	profileRoot := filepath.Join(tmpDir, "profiles")

	existing := store.ProfileDBPath(profileRoot, store.LocalProfile)
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(existing, []byte("current"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	legacy := filepath.Join(tmpDir, "legacy.db")
	if err := os.WriteFile(legacy, []byte("legacy"), 0644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	result, err := store.MigrateLegacyDatabase(legacy, profileRoot)
	if err != nil {
		t.Fatalf("MigrateLegacyDatabase: %v", err)
	}
	if result.Migrated {
		t.Error("expected migrated=false when local profile already exists")
	}
	content, _ := os.ReadFile(existing)
	if string(content) != "current" {
		t.Errorf("existing profile overwritten: %q", content)
	}
}
