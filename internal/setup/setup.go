// Package setup provides the interactive first-run wizard: it picks a
// provider and model, collects a credential, and writes the config and
// credentials files the CLI loads on every run.
package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/tagforge/internal/llm"
)

// Step is one wizard screen.
type Step int

const (
	StepWelcome Step = iota
	StepProvider
	StepModel
	StepAPIKey
	StepStore
	StepConfirm
	StepDone
)

// Result is what the wizard collected.
type Result struct {
	Provider string
	Model    string
	APIKey   string
	Store    string
	Aborted  bool
}

// defaultModels seeds the model prompt per provider.
var defaultModels = map[string]string{
	"anthropic":   "claude-sonnet-4-20250514",
	"openai":      "gpt-4o-mini",
	"google":      "gemini-2.0-flash",
	"ollama":      "llama3.1",
	"huggingface": "meta-llama/Llama-3.1-8B-Instruct",
	"openrouter":  "anthropic/claude-sonnet-4",
	"lmstudio":    "local-model",
}

var storeOptions = []string{"sqlite", "file", "none"}

var (
	setupTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	setupDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Model is the wizard's Bubble Tea model.
type Model struct {
	step   Step
	cursor int
	input  textinput.Model
	result Result
	err    error
}

// New creates the wizard at the welcome screen.
func New() Model {
	return Model{step: StepWelcome, result: Result{Store: "sqlite"}}
}

// Result returns the collected answers after the program finishes.
func (m Model) Result() Result {
	return m.result
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.isTextStep() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q":
		if !m.isTextStep() || key.String() == "ctrl+c" {
			m.result.Aborted = true
			return m, tea.Quit
		}
	case "up", "k":
		if !m.isTextStep() && m.cursor > 0 {
			m.cursor--
			return m, nil
		}
	case "down", "j":
		if !m.isTextStep() && m.cursor < m.maxCursor() {
			m.cursor++
			return m, nil
		}
	case "enter":
		return m.advance()
	}

	if m.isTextStep() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) isTextStep() bool {
	return m.step == StepModel || m.step == StepAPIKey
}

func (m Model) maxCursor() int {
	switch m.step {
	case StepProvider:
		return len(llm.KnownProviders()) - 1
	case StepStore:
		return len(storeOptions) - 1
	default:
		return 0
	}
}

func (m Model) advance() (tea.Model, tea.Cmd) {
	switch m.step {
	case StepWelcome:
		m.step = StepProvider
		m.cursor = 0

	case StepProvider:
		m.result.Provider = llm.KnownProviders()[m.cursor]
		m.input = textinput.New()
		m.input.SetValue(defaultModels[m.result.Provider])
		m.input.Focus()
		m.input.CharLimit = 120
		m.input.Width = 50
		m.step = StepModel
		return m, textinput.Blink

	case StepModel:
		m.result.Model = strings.TrimSpace(m.input.Value())
		if m.result.Model == "" {
			m.result.Model = defaultModels[m.result.Provider]
		}
		if llm.KeyEnvFor(m.result.Provider) == "" {
			// Local endpoints run without a credential.
			m.step = StepStore
			m.cursor = 0
			return m, nil
		}
		m.input = textinput.New()
		m.input.Placeholder = "sk-..."
		m.input.EchoMode = textinput.EchoPassword
		m.input.Focus()
		m.input.CharLimit = 256
		m.input.Width = 50
		m.step = StepAPIKey
		return m, textinput.Blink

	case StepAPIKey:
		m.result.APIKey = strings.TrimSpace(m.input.Value())
		m.step = StepStore
		m.cursor = 0

	case StepStore:
		m.result.Store = storeOptions[m.cursor]
		m.step = StepConfirm

	case StepConfirm:
		m.err = Write(m.result)
		m.step = StepDone
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	switch m.step {
	case StepWelcome:
		return setupTitleStyle.Render("tagforge setup") + "\n\n" +
			"This wizard writes the config and credentials files.\n\n" +
			setupDimStyle.Render("enter: continue  q: quit") + "\n"

	case StepProvider:
		var b strings.Builder
		b.WriteString(setupTitleStyle.Render("Choose a provider") + "\n\n")
		for i, p := range llm.KnownProviders() {
			marker := "  "
			if i == m.cursor {
				marker = cursorStyle.Render("> ")
			}
			b.WriteString(marker + p + "\n")
		}
		b.WriteString("\n" + setupDimStyle.Render("up/down: move  enter: select") + "\n")
		return b.String()

	case StepModel:
		return setupTitleStyle.Render("Model for "+m.result.Provider) + "\n\n" +
			m.input.View() + "\n\n" +
			setupDimStyle.Render("enter: accept") + "\n"

	case StepAPIKey:
		env := llm.KeyEnvFor(m.result.Provider)
		return setupTitleStyle.Render("API key for "+m.result.Provider) + "\n\n" +
			m.input.View() + "\n\n" +
			setupDimStyle.Render(fmt.Sprintf("stored in credentials.toml; %s still wins  enter: accept (empty skips)", env)) + "\n"

	case StepStore:
		var b strings.Builder
		b.WriteString(setupTitleStyle.Render("Run storage") + "\n\n")
		for i, s := range storeOptions {
			marker := "  "
			if i == m.cursor {
				marker = cursorStyle.Render("> ")
			}
			b.WriteString(marker + s + "\n")
		}
		b.WriteString("\n" + setupDimStyle.Render("sqlite keeps runs queryable; none disables resume/replay") + "\n")
		return b.String()

	case StepConfirm:
		return setupTitleStyle.Render("Review") + "\n\n" +
			fmt.Sprintf("  provider: %s\n  model:    %s\n  api key:  %s\n  store:    %s\n\n",
				m.result.Provider, m.result.Model, maskKey(m.result.APIKey), m.result.Store) +
			setupDimStyle.Render("enter: write files  ctrl+c: abort") + "\n"

	case StepDone:
		if m.err != nil {
			return "setup failed: " + m.err.Error() + "\n"
		}
		return selectedStyle.Render("✓ wrote "+ConfigPath()) + "\n"
	}
	return ""
}

func maskKey(key string) string {
	if key == "" {
		return "(none)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// ConfigDir returns the directory setup writes into.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tagforge"
	}
	return filepath.Join(home, ".config", "tagforge")
}

// ConfigPath returns the config file setup writes.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// fileConfig is the TOML shape setup writes; a subset of the full config,
// everything else keeps its default.
type fileConfig struct {
	LLM struct {
		Provider string `toml:"provider"`
		Model    string `toml:"model"`
	} `toml:"llm"`
	Session struct {
		Store string `toml:"store"`
	} `toml:"session"`
}

// Write persists the wizard result: config.toml always, credentials.toml
// only when a key was entered.
func Write(result Result) error {
	if err := os.MkdirAll(ConfigDir(), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var cfg fileConfig
	cfg.LLM.Provider = result.Provider
	cfg.LLM.Model = result.Model
	cfg.Session.Store = result.Store

	f, err := os.OpenFile(ConfigPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if result.APIKey == "" {
		return nil
	}
	return writeCredentials(result.Provider, result.APIKey)
}

func writeCredentials(provider, key string) error {
	path := filepath.Join(ConfigDir(), "credentials.toml")

	// Preserve keys for other providers already on disk.
	creds := map[string]map[string]string{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &creds); err != nil {
			return fmt.Errorf("failed to read existing credentials: %w", err)
		}
	}
	creds[provider] = map[string]string{"api_key": key}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(creds)
}

// Run starts the wizard and returns its result.
func Run() (Result, error) {
	prog := tea.NewProgram(New())
	final, err := prog.Run()
	if err != nil {
		return Result{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return Result{}, fmt.Errorf("unexpected wizard state")
	}
	if m.err != nil {
		return m.result, m.err
	}
	return m.result, nil
}
