package agenda

import (
	"os"
	"time"

	"github.com/hyperengineering/agenda/internal/store"
)

// Config configures the agenda client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	// If empty, it is derived from Owner's profile.
	LocalPath string

	// Owner is the signed-in identity. Empty means no one is signed in yet;
	// records are kept in the local profile and adopted on SetOwner.
	Owner string

	// ServerURL is the URL of the agenda server.
	// If empty, operates in offline-only mode.
	ServerURL string

	// APIKey authenticates with the server.
	APIKey string

	// SyncInterval is how often the background loop checks connectivity and syncs.
	// Defaults to 5 minutes.
	SyncInterval time.Duration

	// AutoSync enables the background loop.
	AutoSync bool

	// Retry overrides the retry policy for remote calls. Zero fields use defaults.
	Retry RetryPolicy

	// Debug enables verbose logging of all server communication.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LocalPath:    store.OwnerDBPath(""),
		SyncInterval: 5 * time.Minute,
		AutoSync:     true,
		Retry:        DefaultRetryPolicy(),
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	AGENDA_DB_PATH     → LocalPath
//	AGENDA_OWNER       → Owner
//	AGENDA_SERVER_URL  → ServerURL
//	AGENDA_API_KEY     → APIKey
//	AGENDA_DEBUG       → Debug (any non-empty value enables)
//	AGENDA_DEBUG_LOG   → DebugLogPath
func ConfigFromEnv() Config {
	return Config{
		LocalPath:    os.Getenv("AGENDA_DB_PATH"),
		Owner:        os.Getenv(store.EnvOwner),
		ServerURL:    os.Getenv("AGENDA_SERVER_URL"),
		APIKey:       os.Getenv("AGENDA_API_KEY"),
		Debug:        os.Getenv("AGENDA_DEBUG") != "",
		DebugLogPath: os.Getenv("AGENDA_DEBUG_LOG"),
	}
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Owner != "" {
		if err := store.ValidateOwnerIDForSignIn(c.Owner); err != nil {
			return &ValidationError{Field: "Owner", Message: err.Error()}
		}
	}

	if c.ServerURL != "" && c.APIKey == "" {
		return &ValidationError{Field: "APIKey", Message: "required when ServerURL is set"}
	}

	if c.SyncInterval < 0 {
		return &ValidationError{Field: "SyncInterval", Message: "must be non-negative"}
	}

	if c.Retry.Attempts < 0 {
		return &ValidationError{Field: "Retry.Attempts", Message: "must be non-negative"}
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return &ValidationError{Field: "Retry.Jitter", Message: "must be between 0 and 1"}
	}

	return nil
}

// IsOffline returns true if the client operates in offline-only mode.
// Offline mode is determined by ServerURL being empty.
func (c *Config) IsOffline() bool {
	return c.ServerURL == ""
}

// WithDefaults fills in default values for unset fields.
// LocalPath is derived from Owner's profile if not explicitly set.
//
// Auto-migration: when the local profile is selected and has no database yet,
// a database at AGENDA_DB_PATH or ~/.agenda/agenda.db is copied into it and
// the source path recorded in metadata.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.LocalPath == "" {
		if c.Owner == "" {
			// Best-effort; a failed copy just starts a fresh profile.
			_ = migrateAndSetMetadata(os.Getenv("AGENDA_DB_PATH"), store.DefaultProfileRoot())
		}
		c.LocalPath = store.OwnerDBPath(c.Owner)
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	c.Retry = c.Retry.withDefaults()

	return c
}

// migrateAndSetMetadata copies a legacy database into the local profile and
// records where it came from.
func migrateAndSetMetadata(legacyPath, profileRoot string) error {
	result, err := store.MigrateLegacyDatabase(legacyPath, profileRoot)
	if err != nil {
		return err
	}
	if !result.Migrated {
		return nil
	}

	s, err := NewStore(result.DestPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return s.SetStoreMigratedFrom(result.SourcePath)
}
