// Package config loads the sqlflow configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	// DataDir is the directory where database files and the vector index live
	DataDir string `yaml:"data_dir"`

	// Model is the completion model used for translation, safety and
	// relevance checks and answer translation
	Model string `yaml:"model"`

	// GenerationModel is the completion model used for SQL generation.
	// Defaults to Model when empty.
	GenerationModel string `yaml:"generation_model"`

	// Provider selects the completion backend: "openai" or "gemini"
	Provider string `yaml:"provider"`

	// EmbeddingModel is the GenAI model used to embed reference docs
	EmbeddingModel string `yaml:"embedding_model"`

	// MaxIterations bounds the generation retry loop
	MaxIterations int `yaml:"max_iterations"`

	// RetrievalK is the number of reference chunks fetched per generation
	RetrievalK int `yaml:"retrieval_k"`

	// ListenAddr is the address the serve command binds to
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:        "data",
		Model:          "gpt-4o-mini",
		Provider:       "openai",
		EmbeddingModel: "gemini-embedding-001",
		MaxIterations:  3,
		RetrievalK:     4,
		ListenAddr:     ":5001",
		LogLevel:       "info",
	}
}

// Load reads the YAML configuration at path (skipped when path is empty or
// the file does not exist), applies environment overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
			}
			if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
				return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLFLOW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SQLFLOW_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("SQLFLOW_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("SQLFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SQLFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SQLFLOW_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("provider must be openai or gemini, got %q", c.Provider)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}
	if c.RetrievalK < 1 {
		return fmt.Errorf("retrieval_k must be at least 1")
	}
	return nil
}
