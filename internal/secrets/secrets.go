package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Resolve returns the secret stored in the file named by <envKey>_FILE when
// that variable is set (Docker/Kubernetes secrets), otherwise current.
// current is normally the value already parsed from envKey itself.
func Resolve(envKey, current string) (string, error) {
	path := os.Getenv(envKey + "_FILE")
	if path == "" {
		return current, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ResolveAll applies Resolve to each envKey -> field pair and stops at the
// first failure.
func ResolveAll(fields map[string]*string) error {
	for key, field := range fields {
		value, err := Resolve(key, *field)
		if err != nil {
			return err
		}
		*field = value
	}
	return nil
}
