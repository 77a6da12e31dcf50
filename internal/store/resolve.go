package store

import (
	"fmt"
	"os"
)

// EnvOwner names the environment variable consulted by ResolveOwner.
const EnvOwner = "AGENDA_OWNER"

// ResolveOwner determines the profile to open.
// Priority: explicit > AGENDA_OWNER env > "local"
func ResolveOwner(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateOwnerID(explicit); err != nil {
			return "", fmt.Errorf("invalid owner %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if envOwner := os.Getenv(EnvOwner); envOwner != "" {
		if err := ValidateOwnerID(envOwner); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", EnvOwner, envOwner, err)
		}
		return envOwner, nil
	}

	return LocalProfile, nil
}
