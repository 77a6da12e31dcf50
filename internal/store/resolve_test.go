package store_test

import (
	"testing"

	"github.com/hyperengineering/agenda/internal/store"
)

func TestResolveOwner_ExplicitParam(t *testing.T) {
	t.Setenv(store.EnvOwner, "env-owner")

	got, err := store.ResolveOwner("ada")
	if err != nil {
		t.Fatalf("ResolveOwner(explicit) unexpected error: %v", err)
	}
	if got != "ada" {
		t.Errorf("ResolveOwner(explicit) = %q, want %q", got, "ada")
	}
}

func TestResolveOwner_EnvVar(t *testing.T) {
	t.Setenv(store.EnvOwner, "env-owner")

	got, err := store.ResolveOwner("")
	if err != nil {
		t.Fatalf("ResolveOwner(env) unexpected error: %v", err)
	}
	if got != "env-owner" {
		t.Errorf("ResolveOwner(env) = %q, want %q", got, "env-owner")
	}
}

func TestResolveOwner_LocalFallback(t *testing.T) {
	t.Setenv(store.EnvOwner, "")

	got, err := store.ResolveOwner("")
	if err != nil {
		t.Fatalf("ResolveOwner(fallback) unexpected error: %v", err)
	}
	if got != store.LocalProfile {
		t.Errorf("ResolveOwner(fallback) = %q, want %q", got, store.LocalProfile)
	}
}

func TestResolveOwner_InvalidExplicit(t *testing.T) {
	if _, err := store.ResolveOwner("not valid"); err == nil {
		t.Error("ResolveOwner(invalid) expected error")
	}
}

func TestResolveOwner_InvalidEnv(t *testing.T) {
	t.Setenv(store.EnvOwner, "bad/owner")

	if _, err := store.ResolveOwner(""); err == nil {
		t.Error("ResolveOwner(invalid env) expected error")
	}
}
