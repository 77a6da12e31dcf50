// Package store resolves which local profile database a client opens.
//
// Every owner identity gets its own SQLite file so that switching accounts
// never mixes bookmarks. Records created before anyone signs in live in the
// reserved "local" profile.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// Owner ID validation errors.
var (
	// ErrInvalidOwnerID indicates the owner ID format is invalid.
	ErrInvalidOwnerID = errors.New("invalid owner ID: 1-128 characters of letters, digits, '.', '_', '-' or '@'")

	// ErrReservedOwnerID indicates the owner ID is reserved for the signed-out profile.
	ErrReservedOwnerID = errors.New("reserved owner ID")
)

// LocalProfile is the profile used while no owner is known.
const LocalProfile = "local"

// ownerIDRegex validates owner ID format.
// - Starts with a letter or digit
// - Letters, digits, '.', '_', '-' and '@'
// - Total max length: 128 characters
var ownerIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// ValidateOwnerID validates an owner ID format.
// The reserved "local" profile is valid for targeting.
func ValidateOwnerID(id string) error {
	if id == "" {
		return ErrInvalidOwnerID
	}
	if IsReservedOwnerID(id) {
		return nil
	}
	if strings.Contains(id, "..") {
		return ErrInvalidOwnerID
	}
	if !ownerIDRegex.MatchString(id) {
		return ErrInvalidOwnerID
	}
	return nil
}

// IsReservedOwnerID returns true if id names the signed-out profile.
func IsReservedOwnerID(id string) bool {
	return id == LocalProfile
}

// ValidateOwnerIDForSignIn validates an owner ID used as an account identity.
func ValidateOwnerIDForSignIn(id string) error {
	if err := ValidateOwnerID(id); err != nil {
		return err
	}
	if IsReservedOwnerID(id) {
		return ErrReservedOwnerID
	}
	return nil
}
