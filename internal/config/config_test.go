package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := New()

	if cfg.Agent.MaxSteps != 4 {
		t.Errorf("expected default max_steps 4, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.SampleSize != 1000 {
		t.Errorf("expected default sample_size 1000, got %d", cfg.Agent.SampleSize)
	}
	if cfg.Agent.SampleSeed != 42 {
		t.Errorf("expected default sample_seed 42, got %d", cfg.Agent.SampleSeed)
	}
	if cfg.Agent.TagColumn != "tagforge_tag" {
		t.Errorf("expected default tag column, got %q", cfg.Agent.TagColumn)
	}
	if cfg.Agent.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.Agent.Workers)
	}
	if cfg.Session.Store != "sqlite" {
		t.Errorf("expected default store sqlite, got %q", cfg.Session.Store)
	}
	if cfg.Telemetry.Mode != "off" {
		t.Errorf("expected default telemetry off, got %q", cfg.Telemetry.Mode)
	}
	if cfg.Sandbox.Timeout != 30 {
		t.Errorf("expected default sandbox timeout 30, got %d", cfg.Sandbox.Timeout)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tagforge.toml")
	content := `
[agent]
max_steps = 8
tag_column = "label"

[llm]
provider = "anthropic"
model = "claude-sonnet-4-20250514"

[session]
store = "file"

[telemetry]
mode = "otlp"
endpoint = "localhost:4318"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Agent.MaxSteps != 8 {
		t.Errorf("expected max_steps 8, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.TagColumn != "label" {
		t.Errorf("expected tag column label, got %q", cfg.Agent.TagColumn)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", cfg.LLM.Provider)
	}
	if cfg.Session.Store != "file" {
		t.Errorf("expected store file, got %q", cfg.Session.Store)
	}
	if cfg.Telemetry.Mode != "otlp" {
		t.Errorf("expected telemetry otlp, got %q", cfg.Telemetry.Mode)
	}

	// Values the file omits keep their defaults.
	if cfg.Agent.SampleSize != 1000 {
		t.Errorf("expected default sample_size preserved, got %d", cfg.Agent.SampleSize)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens preserved, got %d", cfg.LLM.MaxTokens)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[agent\nmax_steps="), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
