package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "jwtSecret: test-secret\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.URLPrefix != "/uploads" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.DefaultProvider != "mock" {
		t.Fatalf("expected mock default provider, got %q", cfg.DefaultProvider)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("unexpected default upload limit %d", cfg.MaxUploadBytes)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, "port: \"9000\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing jwtSecret")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "jwtSecret: file-secret\nport: \"9000\"\n")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("EDUCRAFT_PORT", "9100")
	t.Setenv("EDUCRAFT_DEFAULT_PROVIDER", "ollama")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("env secret not applied, got %q", cfg.JWTSecret)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env port not applied, got %q", cfg.Port)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Fatalf("env provider not applied, got %q", cfg.DefaultProvider)
	}
}

func TestLoadRateLimitsNeedRedis(t *testing.T) {
	path := writeConfig(t, "jwtSecret: s\nloginRateLimitPerMinute: 5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when rate limits set without redis")
	}

	path = writeConfig(t, "jwtSecret: s\nloginRateLimitPerMinute: 5\nredisAddr: 127.0.0.1:6379\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load with redis: %v", err)
	}
}

func TestLoadProviderSection(t *testing.T) {
	path := writeConfig(t, `
jwtSecret: s
defaultProvider: openai
providers:
  openai:
    baseURL: https://api.example.com/v1
    apiKey: sk-test
    textModel: gpt-test
    imageModel: img-test
  ollama:
    baseURL: http://localhost:11434
    textModel: llama3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := cfg.Providers["openai"]
	if !ok || p.APIKey != "sk-test" || p.ImageModel != "img-test" {
		t.Fatalf("unexpected openai provider config: %+v", p)
	}
	if cfg.Providers["ollama"].TextModel != "llama3" {
		t.Fatalf("unexpected ollama provider config: %+v", cfg.Providers["ollama"])
	}
}

func TestParseJWTLeeway(t *testing.T) {
	if d, err := ParseJWTLeeway(""); err != nil || d != 0 {
		t.Fatalf("empty leeway should be zero, got %v %v", d, err)
	}
	if d, err := ParseJWTLeeway("30s"); err != nil || d != 30*time.Second {
		t.Fatalf("expected 30s, got %v %v", d, err)
	}
	if _, err := ParseJWTLeeway("banana"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadRejectsUnknownStorageBackend(t *testing.T) {
	path := writeConfig(t, "jwtSecret: s\nstorage:\n  backend: tape\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}
