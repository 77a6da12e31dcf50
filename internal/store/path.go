package store

import (
	"os"
	"path/filepath"
	"strings"
)

// DBFileName is the database file inside each profile directory.
const DBFileName = "agenda.db"

// DefaultRoot returns the agenda home directory.
// Defaults to ~/.agenda, falls back to ./.agenda if home dir unavailable.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".agenda")
	}
	return filepath.Join(home, ".agenda")
}

// DefaultProfileRoot returns the directory holding one subdirectory per profile.
func DefaultProfileRoot() string {
	return filepath.Join(DefaultRoot(), "profiles")
}

// EncodeOwnerPath encodes an owner ID for filesystem use.
// "@" becomes "_at_" so e-mail style IDs stay portable.
func EncodeOwnerPath(owner string) string {
	return strings.ReplaceAll(owner, "@", "_at_")
}

// DecodeOwnerPath decodes an encoded profile directory back to an owner ID.
func DecodeOwnerPath(encoded string) string {
	return strings.ReplaceAll(encoded, "_at_", "@")
}

// ProfileDBPath returns the database path for owner under root.
// An empty owner maps to the local profile.
// Example: ProfileDBPath(root, "ada@example.com") -> root/ada_at_example.com/agenda.db
func ProfileDBPath(root, owner string) string {
	if owner == "" {
		owner = LocalProfile
	}
	return filepath.Join(root, EncodeOwnerPath(owner), DBFileName)
}

// OwnerDBPath returns the database path for owner under DefaultProfileRoot.
func OwnerDBPath(owner string) string {
	return ProfileDBPath(DefaultProfileRoot(), owner)
}
