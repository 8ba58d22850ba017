package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the reflection daemon.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the journal database path. The reflection cache lives
// in the same database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// OpenAIConfig holds model settings. The API key may be left empty in the
// file and supplied via OPENAI_API_KEY instead.
type OpenAIConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// PipelineConfig holds sampling and cache tuning.
type PipelineConfig struct {
	SampleThreshold int `yaml:"sample_threshold"`
	SampleTarget    int `yaml:"sample_target"`
	CacheTTLHours   int `yaml:"cache_ttl_hours"`
}

// Load reads and parses the config file at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "journal.db"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-5-mini"
	}
	if cfg.Pipeline.CacheTTLHours == 0 {
		cfg.Pipeline.CacheTTLHours = 24
	}
}

// Validate checks the parts of the config that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.OpenAI.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return errors.New("missing OpenAI API key (set openai.api_key or OPENAI_API_KEY)")
	}
	if c.Pipeline.SampleThreshold < 0 || c.Pipeline.SampleTarget < 0 {
		return errors.New("pipeline sample limits must be >= 0")
	}
	return nil
}
