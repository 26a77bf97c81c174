package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("storage type = %q, want sqlite", cfg.Storage.Type)
	}
	if cfg.Retriever.TopK != 4 {
		t.Errorf("top_k = %d, want 4", cfg.Retriever.TopK)
	}
	if cfg.Generation.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", cfg.Generation.Model)
	}
	if cfg.Assistant.DefaultLanguage != "nl" {
		t.Errorf("default language = %q, want nl", cfg.Assistant.DefaultLanguage)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
retriever:
  base_url: https://context.internal.example
  top_k: 8
generation:
  model: gpt-4o
  pricing:
    - model: gpt-4o
      input_per_mtok: "2.50"
      output_per_mtok: "10.00"
assistant:
  default_language: en
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Retriever.BaseURL != "https://context.internal.example" {
		t.Errorf("base_url = %q", cfg.Retriever.BaseURL)
	}
	if cfg.Retriever.TopK != 8 {
		t.Errorf("top_k = %d, want 8", cfg.Retriever.TopK)
	}
	if len(cfg.Generation.Pricing) != 1 || cfg.Generation.Pricing[0].InputPerMTok != "2.50" {
		t.Errorf("pricing = %+v", cfg.Generation.Pricing)
	}
	if cfg.Assistant.DefaultLanguage != "en" {
		t.Errorf("default language = %q, want en", cfg.Assistant.DefaultLanguage)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("HRA_SERVER__PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
}

func TestEnvVarSubstitution(t *testing.T) {
	path := writeConfig(t, `
retriever:
  api_key: ${TEST_RETRIEVER_KEY}
generation:
  api_key: ${TEST_OPENAI_KEY}
`)

	t.Setenv("TEST_RETRIEVER_KEY", "rk-123")
	t.Setenv("TEST_OPENAI_KEY", "sk-456")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retriever.APIKey != "rk-123" {
		t.Errorf("retriever key = %q, want rk-123", cfg.Retriever.APIKey)
	}
	if cfg.Generation.APIKey != "sk-456" {
		t.Errorf("generation key = %q, want sk-456", cfg.Generation.APIKey)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
