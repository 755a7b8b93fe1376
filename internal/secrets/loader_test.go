package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
		unset   bool
	}{
		{name: "inline value", src: Source{Name: "gemini api key", Value: " inline "}, want: "inline"},
		{name: "file wins over value", src: Source{Value: "inline", File: keyFile}, want: "from-file"},
		{name: "empty file", src: Source{Name: "gemini api key", File: emptyFile}, wantErr: "is empty", unset: true},
		{name: "missing file", src: Source{File: filepath.Join(dir, "missing")}, wantErr: "reading secret"},
		{name: "nothing configured", src: Source{Name: "gemini api key"}, wantErr: "gemini api key is not configured", unset: true},
		{
			name:    "hint is appended",
			src:     Source{Name: "gemini api key", Hint: "set GEMINI_API_KEY_FILE"},
			wantErr: "gemini api key is not configured (set GEMINI_API_KEY_FILE)",
			unset:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				if errors.Is(err, ErrNotConfigured) != tt.unset {
					t.Fatalf("unexpected ErrNotConfigured match for %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
