// Package config loads service configuration from config.yaml and
// HRA_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Retriever  RetrieverConfig  `koanf:"retriever"`
	Generation GenerationConfig `koanf:"generation"`
	Assistant  AssistantConfig  `koanf:"assistant"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeout bounds non-streaming requests. Streaming responses
	// are bounded by the generation timeout instead.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // sqlite, postgres, memory
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig is the generic database configuration for non-sqlite
// deployments.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type RetrieverConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	TopK    int           `koanf:"top_k"`
	Timeout time.Duration `koanf:"timeout"`
}

type GenerationConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	// Pricing lists per-model token rates used to derive generation cost.
	Pricing []ModelPricing `koanf:"pricing"`
}

// ModelPricing holds decimal per-million-token rates as strings so that no
// floating point enters the cost path.
type ModelPricing struct {
	Model         string `koanf:"model"`
	InputPerMTok  string `koanf:"input_per_mtok"`
	OutputPerMTok string `koanf:"output_per_mtok"`
}

type AssistantConfig struct {
	// DefaultLanguage is the fallback response language code.
	DefaultLanguage string `koanf:"default_language"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml (optional) and then HRA_ environment variables,
// which override file values. HRA_SERVER__PORT=9090 sets server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Missing file is fine, env vars can carry the full config.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("HRA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HRA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Substitute ${VAR} references so secrets can stay out of the file.
	cfg.Retriever.APIKey = substituteEnvVars(cfg.Retriever.APIKey)
	cfg.Generation.APIKey = substituteEnvVars(cfg.Generation.APIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":                8080,
		"server.request_timeout":     "30s",
		"storage.type":               "sqlite",
		"storage.sqlite.path":        "./data/assistant.db",
		"retriever.top_k":            4,
		"retriever.timeout":          "15s",
		"generation.model":           "gpt-4o-mini",
		"generation.max_tokens":      1024,
		"generation.timeout":         "120s",
		"assistant.default_language": "nl",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
