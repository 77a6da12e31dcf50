package agenda

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/agenda/internal/store"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AGENDA_DB_PATH", "/tmp/agenda.db")
	t.Setenv("AGENDA_OWNER", "alice")
	t.Setenv("AGENDA_SERVER_URL", "https://agenda.example.com")
	t.Setenv("AGENDA_API_KEY", "secret")
	t.Setenv("AGENDA_DEBUG", "1")
	t.Setenv("AGENDA_DEBUG_LOG", "/tmp/debug.log")

	cfg := ConfigFromEnv()
	if cfg.LocalPath != "/tmp/agenda.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.Owner != "alice" {
		t.Errorf("Owner = %q", cfg.Owner)
	}
	if cfg.ServerURL != "https://agenda.example.com" || cfg.APIKey != "secret" {
		t.Errorf("server = %q key = %q", cfg.ServerURL, cfg.APIKey)
	}
	if !cfg.Debug || cfg.DebugLogPath != "/tmp/debug.log" {
		t.Errorf("debug = %v path = %q", cfg.Debug, cfg.DebugLogPath)
	}
	if cfg.IsOffline() {
		t.Error("config with a server URL should not be offline")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"valid offline", Config{LocalPath: "a.db"}, ""},
		{"valid online", Config{LocalPath: "a.db", ServerURL: "http://x", APIKey: "k"}, ""},
		{"missing path", Config{}, "LocalPath"},
		{"invalid owner", Config{LocalPath: "a.db", Owner: "has space"}, "Owner"},
		{"missing key", Config{LocalPath: "a.db", ServerURL: "http://x"}, "APIKey"},
		{"negative attempts", Config{LocalPath: "a.db", Retry: RetryPolicy{Attempts: -1}}, "Retry.Attempts"},
		{"jitter too large", Config{LocalPath: "a.db", Retry: RetryPolicy{Jitter: 1.5}}, "Retry.Jitter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("err = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGENDA_DB_PATH", "")

	cfg := Config{Owner: "ada@example.com"}.WithDefaults()

	want := filepath.Join(home, ".agenda", "profiles", "ada_at_example.com", "agenda.db")
	if cfg.LocalPath != want {
		t.Errorf("LocalPath = %q, want %q", cfg.LocalPath, want)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.Timeout != 10*time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}

	explicit := Config{LocalPath: "/data/x.db", SyncInterval: time.Minute}.WithDefaults()
	if explicit.LocalPath != "/data/x.db" || explicit.SyncInterval != time.Minute {
		t.Errorf("explicit values overwritten: %+v", explicit)
	}
}

func TestMigrateAndSetMetadata(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "legacy.db")
	profiles := filepath.Join(dir, "profiles")

	old, err := NewStore(legacy)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := old.SaveBookmark(Bookmark{Year: 2024, Slug: "old-talk", Kind: KindEvent, Status: StatusFavourited}, false); err != nil {
		t.Fatalf("SaveBookmark: %v", err)
	}
	if err := old.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := migrateAndSetMetadata(legacy, profiles); err != nil {
		t.Fatalf("migrateAndSetMetadata: %v", err)
	}

	migrated, err := NewStore(store.ProfileDBPath(profiles, ""))
	if err != nil {
		t.Fatalf("open migrated: %v", err)
	}
	defer migrated.Close()

	from, err := migrated.GetStoreMigratedFrom()
	if err != nil {
		t.Fatalf("GetStoreMigratedFrom: %v", err)
	}
	if from != legacy {
		t.Errorf("migrated from = %q, want %q", from, legacy)
	}
	if _, err := migrated.BookmarkBySlug("", 2024, "old-talk"); err != nil {
		t.Errorf("legacy bookmark missing: %v", err)
	}

	// A second run leaves the existing profile alone.
	if err := migrateAndSetMetadata(legacy, profiles); err != nil {
		t.Errorf("second run: %v", err)
	}
}
