package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv keeps the host environment from leaking into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		for _, e := range s.env {
			t.Setenv(e, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want %q", cfg.Ollama.BaseURL, "http://localhost:11434")
	}
	if cfg.Models.Chat != "llama3.2" {
		t.Errorf("Models.Chat = %q, want %q", cfg.Models.Chat, "llama3.2")
	}
	if cfg.Models.Embed != "nomic-embed-text" {
		t.Errorf("Models.Embed = %q, want %q", cfg.Models.Embed, "nomic-embed-text")
	}
	if cfg.Scoring.Pacing != 100*time.Millisecond {
		t.Errorf("Scoring.Pacing = %v, want 100ms", cfg.Scoring.Pacing)
	}
	if cfg.Quota.Window != 24*time.Hour {
		t.Errorf("Quota.Window = %v, want 24h", cfg.Quota.Window)
	}
	if cfg.Log.JSON || cfg.Log.Debug {
		t.Errorf("Log = %+v, want all false", cfg.Log)
	}
}

func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `server:
  port: 5000
models:
  chat: "ollama:mistral-nemo"
  secondary_embed: "all-minilm"
scoring:
  pacing: 250ms
  tables_dir: /etc/skillgap/tables
quota:
  window: 12h
log:
  json: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Models.Chat != "ollama:mistral-nemo" {
		t.Errorf("Models.Chat = %q", cfg.Models.Chat)
	}
	if cfg.Models.SecondaryEmbed != "all-minilm" {
		t.Errorf("Models.SecondaryEmbed = %q", cfg.Models.SecondaryEmbed)
	}
	if cfg.Scoring.Pacing != 250*time.Millisecond {
		t.Errorf("Scoring.Pacing = %v, want 250ms", cfg.Scoring.Pacing)
	}
	if cfg.Scoring.TablesDir != "/etc/skillgap/tables" {
		t.Errorf("Scoring.TablesDir = %q", cfg.Scoring.TablesDir)
	}
	if cfg.Quota.Window != 12*time.Hour {
		t.Errorf("Quota.Window = %v, want 12h", cfg.Quota.Window)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON = false, want true")
	}
	// Unset keys keep their defaults.
	if cfg.Models.Embed != "nomic-embed-text" {
		t.Errorf("Models.Embed = %q, want default", cfg.Models.Embed)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 5000\n")

	t.Setenv("SKILLGAP_SERVER_PORT", "6000")
	t.Setenv("SKILLGAP_SERVER_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "env-key" {
		t.Errorf("Server.APIKey = %q, want %q", cfg.Server.APIKey, "env-key")
	}
}

func TestGeminiKeyFallbackEnv(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "models:\n  chat: gemini:gemini-2.5-flash\n")

	t.Setenv("GEMINI_API_KEY", "gk")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "gk" {
		t.Errorf("Gemini.APIKey = %q, want %q", cfg.Gemini.APIKey, "gk")
	}
}

func TestMissingGeminiKey(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "models:\n  embed: gemini:text-embedding-004\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing Gemini API key, got nil")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("error %q does not name the environment variable", err)
	}
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 70000\nquota:\n  window: 0s\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"server.port", "quota.window"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestMissingDefaultFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := SetKey(path, "server.port", "4100"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey(path, "quota.window", "6h"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Quota.Window != 6*time.Hour {
		t.Errorf("Quota.Window = %v, want 6h", cfg.Quota.Window)
	}
}

func TestSetKeyRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cases := []struct {
		key, value string
	}{
		{"nope.key", "x"},
		{"server.api_key", "secret"},
		{"server.port", "abc"},
		{"log.json", "maybe"},
		{"quota.window", "soon"},
	}
	for _, tc := range cases {
		if err := SetKey(path, tc.key, tc.value); err == nil {
			t.Errorf("SetKey(%q, %q) = nil, want error", tc.key, tc.value)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected SetKey calls should not create the file")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKILLGAP_SERVER_API_KEY", "hidden")
	cfg, err := Load(writeTempConfig(t, "{}\n"))
	if err != nil {
		t.Fatal(err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(ValidKeys()) {
		t.Fatalf("ShowAll returned %d keys, ValidKeys %d", len(infos), len(ValidKeys()))
	}
	for _, ki := range infos {
		if ki.Key == "server.api_key" || ki.Key == "gemini.api_key" {
			t.Errorf("secret key %s listed", ki.Key)
		}
		if ki.Value == "hidden" {
			t.Errorf("secret value leaked via %s", ki.Key)
		}
		if !strings.HasPrefix(ki.EnvVar, "SKILLGAP_") {
			t.Errorf("EnvVar = %q, want SKILLGAP_ prefix", ki.EnvVar)
		}
	}
}
