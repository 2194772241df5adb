package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vinayprograms/tagforge/internal/config"
	"github.com/vinayprograms/tagforge/internal/session"
)

func TestModelStringPrecedence(t *testing.T) {
	t.Setenv("TAGFORGE_MODEL", "")

	rt := &runtime{cli: &CLI{}, cfg: config.New()}
	if got := rt.modelString(); got != "openai/gpt-4o-mini" {
		t.Errorf("expected built-in default, got %q", got)
	}

	rt.cfg.LLM.Provider = "anthropic"
	rt.cfg.LLM.Model = "claude-sonnet-4-20250514"
	if got := rt.modelString(); got != "anthropic/claude-sonnet-4-20250514" {
		t.Errorf("expected config model, got %q", got)
	}

	rt.cli.Model = "ollama/llama3"
	if got := rt.modelString(); got != "ollama/llama3" {
		t.Errorf("flag must win, got %q", got)
	}
}

func TestPromptsDirPrecedence(t *testing.T) {
	rt := &runtime{cli: &CLI{}, cfg: config.New()}
	if got := rt.promptsDir(); got != "" {
		t.Errorf("expected built-in prompts by default, got %q", got)
	}

	rt.cfg.Agent.Prompts = "/etc/tagforge/prompts"
	if got := rt.promptsDir(); got != "/etc/tagforge/prompts" {
		t.Errorf("expected config dir, got %q", got)
	}

	rt.cli.Prompts = "./local-prompts"
	if got := rt.promptsDir(); got != "./local-prompts" {
		t.Errorf("flag must win, got %q", got)
	}
}

func TestModelStringConfigWithoutProvider(t *testing.T) {
	rt := &runtime{cli: &CLI{}, cfg: config.New()}
	rt.cfg.LLM.Model = "gpt-4o"
	if got := rt.modelString(); got != "gpt-4o" {
		t.Errorf("expected bare model passthrough, got %q", got)
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tagforge.toml")
	content := "[agent]\nmax_steps = 7\n\n[session]\nstore = \"file\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Agent.MaxSteps != 7 {
		t.Errorf("expected max_steps 7, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Session.Store != "file" {
		t.Errorf("expected file store, got %q", cfg.Session.Store)
	}
	// Untouched settings keep their defaults.
	if cfg.Agent.TagCount != 10 {
		t.Errorf("expected default tag count, got %d", cfg.Agent.TagCount)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestSetupSessionsStores(t *testing.T) {
	dir := t.TempDir()

	rt := &runtime{cli: &CLI{}, cfg: config.New()}
	rt.cfg.Session.Store = "file"
	rt.cfg.Session.Path = dir
	if err := rt.setupSessions(); err != nil {
		t.Fatalf("file store setup failed: %v", err)
	}
	if _, ok := rt.store.(*session.FileStore); !ok {
		t.Errorf("expected FileStore, got %T", rt.store)
	}

	rt = &runtime{cli: &CLI{}, cfg: config.New()}
	rt.cfg.Session.Store = "none"
	if err := rt.setupSessions(); err != nil {
		t.Fatalf("none store setup failed: %v", err)
	}
	if rt.sessions != nil {
		t.Error("expected nil session manager with store none")
	}
	if _, err := rt.requireSessions(); err == nil {
		t.Error("requireSessions must fail with store none")
	}

	rt = &runtime{cli: &CLI{}, cfg: config.New()}
	rt.cfg.Session.Store = "bogus"
	if err := rt.setupSessions(); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestWatchPath(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	rt := &runtime{store: store}
	path, err := rt.watchPath("abc123")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "abc123.json") {
		t.Errorf("unexpected watch path: %q", path)
	}

	rt = &runtime{}
	if _, err := rt.watchPath("abc123"); err == nil {
		t.Error("expected error for store without a path")
	}
}
