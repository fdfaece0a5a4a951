package accelade

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm/accelade/lib/syncer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accelade.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
update_url: /api/update
csrf_token: abc
debounce: 500ms
framework: vue
expression_engine: cel
script_timeout: 2s
flash:
  success: Saved
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.UpdateURL != "/api/update" {
		t.Errorf("UpdateURL = %q", cfg.UpdateURL)
	}
	if cfg.BatchUpdateURL != syncer.DefaultBatchUpdateURL {
		t.Errorf("BatchUpdateURL = %q, want default", cfg.BatchUpdateURL)
	}
	if cfg.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Debounce)
	}
	if cfg.ScriptTimeout != 2*time.Second {
		t.Errorf("ScriptTimeout = %v", cfg.ScriptTimeout)
	}
	if cfg.Framework != "vue" || cfg.ExpressionEngine != "cel" || cfg.CSRFToken != "abc" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Flash["success"] != "Saved" {
		t.Errorf("Flash = %v", cfg.Flash)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{"unknown framework", "framework: ember\n", true},
		{"unknown engine", "expression_engine: lua\n", true},
		{"negative debounce", "debounce: -1s\n", true},
		{"malformed yaml", "framework: [\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil || errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected read error, got %v", err)
		}
	})
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Debounce != syncer.DefaultDebounce {
		t.Errorf("Debounce = %v", cfg.Debounce)
	}
}
