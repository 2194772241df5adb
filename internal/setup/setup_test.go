package setup

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/tagforge/internal/config"
	"github.com/vinayprograms/tagforge/internal/credentials"
	"github.com/vinayprograms/tagforge/internal/llm"
)

func TestWriteConfigAndCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	err := Write(Result{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-20250514",
		APIKey:   "sk-test-1234",
		Store:    "file",
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	cfg, err := config.LoadFile(ConfigPath())
	if err != nil {
		t.Fatalf("config not loadable: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Session.Store != "file" {
		t.Errorf("unexpected store: %q", cfg.Session.Store)
	}
	// Untouched sections keep defaults.
	if cfg.Agent.MaxSteps != 4 {
		t.Errorf("defaults lost: %+v", cfg.Agent)
	}

	creds, _, err := credentials.Load()
	if err != nil {
		t.Fatalf("credentials not loadable: %v", err)
	}
	if creds.Anthropic == nil || creds.Anthropic.APIKey != "sk-test-1234" {
		t.Errorf("credential not written: %+v", creds)
	}
}

func TestWriteSkipsCredentialsWithoutKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Write(Result{Provider: "ollama", Model: "llama3.1", Store: "sqlite"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	for _, path := range credentials.StandardPaths()[1:] {
		if _, err := os.Stat(path); err == nil {
			t.Errorf("credentials file written without a key: %s", path)
		}
	}
}

func TestWritePreservesOtherProviders(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Write(Result{Provider: "openai", Model: "gpt-4o", APIKey: "sk-openai", Store: "sqlite"}); err != nil {
		t.Fatal(err)
	}
	if err := Write(Result{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "sk-ant", Store: "sqlite"}); err != nil {
		t.Fatal(err)
	}

	creds, _, err := credentials.Load()
	if err != nil {
		t.Fatal(err)
	}
	if creds.OpenAI == nil || creds.OpenAI.APIKey != "sk-openai" {
		t.Errorf("earlier provider key lost: %+v", creds)
	}
	if creds.Anthropic == nil || creds.Anthropic.APIKey != "sk-ant" {
		t.Errorf("new provider key missing: %+v", creds)
	}
}

func TestDefaultModelsCoverProviders(t *testing.T) {
	for _, p := range llm.KnownProviders() {
		if defaultModels[p] == "" {
			t.Errorf("no default model for provider %s", p)
		}
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey(""); got != "(none)" {
		t.Errorf("maskKey(empty) = %q", got)
	}
	if got := maskKey("short"); got != "****" {
		t.Errorf("maskKey(short) = %q", got)
	}
	got := maskKey("sk-abcdefghijklmnop")
	if !strings.HasPrefix(got, "sk-a") || !strings.HasSuffix(got, "mnop") || strings.Contains(got, "efgh") {
		t.Errorf("maskKey(long) = %q", got)
	}
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func down() tea.KeyMsg  { return tea.KeyMsg{Type: tea.KeyDown} }

func step(t *testing.T, m tea.Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	wizard, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return wizard
}

func TestWizardKeyFreeProviderSkipsAPIKey(t *testing.T) {
	m := New()
	m = step(t, m, enter()) // welcome -> provider

	// Move the cursor to a key-free provider.
	providers := llm.KnownProviders()
	target := -1
	for i, p := range providers {
		if llm.KeyEnvFor(p) == "" {
			target = i
			break
		}
	}
	if target < 0 {
		t.Skip("no key-free provider registered")
	}
	for i := 0; i < target; i++ {
		m = step(t, m, down())
	}
	m = step(t, m, enter()) // provider -> model
	if m.step != StepModel {
		t.Fatalf("expected model step, got %d", m.step)
	}
	m = step(t, m, enter()) // model -> store (no API key step)
	if m.step != StepStore {
		t.Errorf("key-free provider should skip the API key step, got step %d", m.step)
	}
	if m.result.Model == "" {
		t.Errorf("empty model input should take the provider default")
	}
}

func TestWizardAbort(t *testing.T) {
	m := New()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	wizard := next.(Model)
	if !wizard.result.Aborted {
		t.Error("ctrl+c should abort")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}
