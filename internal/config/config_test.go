package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REPAIRLENS_SERVER__PORT", "")
	os.Unsetenv("REPAIRLENS_SERVER__PORT")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", cfg.Gemini.Model)
	}
	if cfg.Media.MaxUploadBytes != 20*1024*1024 {
		t.Errorf("max upload = %d, want 20 MB", cfg.Media.MaxUploadBytes)
	}
	if cfg.Chat.TokenBudget != 8000 {
		t.Errorf("token budget = %d, want 8000", cfg.Chat.TokenBudget)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REPAIRLENS_SERVER__PORT", "9000")
	t.Setenv("REPAIRLENS_GEMINI__MODEL", "gemini-2.5-pro")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q, want gemini-2.5-pro", cfg.Gemini.Model)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  port: 7070\ngemini:\n  api_key: ${REPAIRLENS_TEST_KEY}\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPAIRLENS_TEST_KEY", "secret-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "secret-key" {
		t.Errorf("api key = %q, want substituted value", cfg.Gemini.APIKey)
	}
}

func TestGeminiAPIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "fallback-key" {
		t.Errorf("api key = %q, want fallback-key", cfg.Gemini.APIKey)
	}
}
