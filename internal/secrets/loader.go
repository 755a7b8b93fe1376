package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a source yields no usable secret.
var ErrNotConfigured = errors.New("not configured")

// Source describes how to load a secret value, such as an embedding provider
// API key.
type Source struct {
	// Name is used in error messages, e.g. "gemini api key".
	Name string
	// Value is an inline secret from configuration or the environment.
	Value string
	// File points to a file holding the secret. It takes precedence over Value.
	File string
	// Hint tells the operator where the secret is expected to come from. It is
	// appended to every error.
	Hint string
}

// Load returns the trimmed secret from src. File wins over Value. Empty
// sources and empty files wrap ErrNotConfigured.
func Load(src Source) (string, error) {
	secret, err := load(src)
	if err != nil {
		if hint := strings.TrimSpace(src.Hint); hint != "" {
			return "", fmt.Errorf("%w (%s)", err, hint)
		}
		return "", err
	}
	return secret, nil
}

func load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}

		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty: %w", name, file, ErrNotConfigured)
		}
		return secret, nil
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		return "", fmt.Errorf("%s is %w", name, ErrNotConfigured)
	}

	return secret, nil
}
