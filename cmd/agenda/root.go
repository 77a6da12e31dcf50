package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hyperengineering/agenda"
	"github.com/hyperengineering/agenda/internal/store"
)

// Configuration keys. Each is settable by flag, AGENDA_<KEY> env var
// (dashes become underscores) or the config file.
const (
	keyDBPath       = "db-path"
	keyOwner        = "owner"
	keyServerURL    = "server-url"
	keyAPIKey       = "api-key"
	keyDebug        = "debug"
	keyDebugLog     = "debug-log"
	keySyncInterval = "sync-interval"
)

var (
	cfgFile    string
	outputJSON bool

	settings *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Agenda - offline-first conference companion",
	Long: `Agenda keeps your conference bookmarks and session notes on this
machine and synchronizes them with the agenda server when it is reachable.

Configuration is read from flags, AGENDA_* environment variables and
~/.agenda/config.yaml, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if isTTY() {
			fmt.Fprintln(cmd.OutOrStdout(), renderBannerWithTagline())
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ~/.agenda/config.yaml)")
	flags.String(keyDBPath, "", "Path to local database (default: derived from owner profile)")
	flags.String(keyOwner, "", "Signed-in identity (default: local profile)")
	flags.String(keyServerURL, "", "URL of the agenda server")
	flags.String(keyAPIKey, "", "API key for server authentication")
	flags.Bool(keyDebug, false, "Log all server communication")
	flags.String(keyDebugLog, "", "Write debug log to this file instead of stderr")
	flags.BoolVar(&outputJSON, "json", false, "Output as JSON")

	settings = newSettings(flags)

	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(statsCmd)
}

// newSettings returns a fresh settings registry bound to the root flags.
func newSettings(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	for _, key := range []string{keyDBPath, keyOwner, keyServerURL, keyAPIKey, keyDebug, keyDebugLog} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}
	v.SetDefault(keySyncInterval, 5*time.Minute)
	return v
}

// initConfig wires environment and config file sources into settings.
// A missing default config file is not an error; a missing --config file is.
func initConfig() error {
	settings.SetEnvPrefix("AGENDA")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if cfgFile != "" {
		settings.SetConfigFile(cfgFile)
	} else {
		settings.SetConfigName("config")
		settings.SetConfigType("yaml")
		settings.AddConfigPath(store.DefaultRoot())
	}

	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig builds the client configuration from settings. The CLI runs
// one command per process, so the background loop stays off.
func loadConfig() (agenda.Config, error) {
	owner, err := store.ResolveOwner(settings.GetString(keyOwner))
	if err != nil {
		return agenda.Config{}, err
	}
	if owner == store.LocalProfile {
		owner = ""
	}

	cfg := agenda.DefaultConfig()
	cfg.LocalPath = settings.GetString(keyDBPath)
	cfg.Owner = owner
	cfg.ServerURL = settings.GetString(keyServerURL)
	cfg.APIKey = settings.GetString(keyAPIKey)
	cfg.Debug = settings.GetBool(keyDebug)
	cfg.DebugLogPath = settings.GetString(keyDebugLog)
	cfg.SyncInterval = settings.GetDuration(keySyncInterval)
	cfg.AutoSync = false
	return cfg, nil
}

// newClient opens the client for the configured profile.
func newClient() (*agenda.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := agenda.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}

// yearFlag resolves the --year flag, defaulting to the current year.
func yearFlag(year int) (int, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	if err := agenda.ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}
