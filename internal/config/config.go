// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the tagforge configuration.
type Config struct {
	Agent     AgentConfig     `toml:"agent"`
	LLM       LLMConfig       `toml:"llm"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Session   SessionConfig   `toml:"session"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Progress  ProgressConfig  `toml:"progress"`
}

// AgentConfig bounds the agent run loop and the dataset handling.
type AgentConfig struct {
	MaxSteps   int    `toml:"max_steps"`
	SampleSize int    `toml:"sample_size"`
	SampleSeed int64  `toml:"sample_seed"`
	TagCount   int    `toml:"tag_count"`
	TagColumn  string `toml:"tag_column"`
	Workers    int    `toml:"workers"`
	Prompts    string `toml:"prompts"` // directory overriding embedded templates
}

// LLMConfig contains model backend settings.
type LLMConfig struct {
	Provider    string `toml:"provider"`
	Model       string `toml:"model"`
	APIKeyEnv   string `toml:"api_key_env"`
	BaseURL     string `toml:"base_url"`
	MaxTokens   int    `toml:"max_tokens"`
	MaxRetries  int    `toml:"max_retries"`
	InitBackoff int    `toml:"init_backoff"` // seconds
	MaxBackoff  int    `toml:"max_backoff"`  // seconds
}

// SandboxConfig bounds the interpreter sandbox.
type SandboxConfig struct {
	Timeout int      `toml:"timeout"` // seconds per snippet
	Imports []string `toml:"imports"` // override of the default allow-list
}

// SessionConfig contains run storage settings.
type SessionConfig struct {
	Store string `toml:"store"` // sqlite, file or none
	Path  string `toml:"path"`
}

// TelemetryConfig contains trace export settings.
type TelemetryConfig struct {
	Mode     string `toml:"mode"` // off or otlp
	Endpoint string `toml:"endpoint"`
}

// ProgressConfig configures optional progress mirroring.
type ProgressConfig struct {
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxSteps:   4,
			SampleSize: 1000,
			SampleSeed: 42,
			TagCount:   10,
			TagColumn:  "tagforge_tag",
			Workers:    1,
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Sandbox: SandboxConfig{
			Timeout: 30,
		},
		Session: SessionConfig{
			Store: "sqlite",
		},
		Telemetry: TelemetryConfig{
			Mode: "off",
		},
	}
}

// LoadFile loads configuration from a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SearchPaths returns the config file locations in order of priority.
func SearchPaths() []string {
	paths := []string{"tagforge.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "tagforge", "config.toml"),
			filepath.Join(home, ".tagforge", "config.toml"),
		)
	}
	return paths
}

// Load loads configuration from the first available standard location.
// No file found is not an error: the defaults apply.
func Load() (*Config, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return New(), nil
}

// SessionPath returns the configured run store location, defaulting to
// the user's tagforge directory.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return expandHome(c.Session.Path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tagforge"
	}
	return filepath.Join(home, ".tagforge")
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
