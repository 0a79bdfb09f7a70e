package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Context   ContextConfig   `json:"context"`
	Switching SwitchingConfig `json:"switching"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// ContextConfig tunes the context window manager. Zero values fall back
// to the built-in budget table.
type ContextConfig struct {
	Model        string         `json:"model"`
	MaxTokens    int            `json:"max_tokens"`
	BufferTokens int            `json:"buffer_tokens"`
	Budgets      map[string]int `json:"budgets,omitempty"`
}

// SwitchingConfig optionally overrides the built-in emotion rules. An
// empty list keeps the defaults.
type SwitchingConfig struct {
	Emotions []EmotionRuleConfig `json:"emotions,omitempty"`
}

type EmotionRuleConfig struct {
	Emotion   string  `json:"emotion"`
	Threshold float64 `json:"threshold"`
	Target    string  `json:"target"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Context.Model == "" {
		cfg.Context.Model = "gpt-3.5-turbo"
	}
	return &cfg, nil
}
