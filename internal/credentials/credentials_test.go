package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.toml")

	content := `
[anthropic]
api_key = "sk-ant-test123"

[openai]
api_key = "sk-test456"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if creds.Anthropic == nil || creds.Anthropic.APIKey != "sk-ant-test123" {
		t.Errorf("anthropic key not loaded correctly")
	}
	if creds.OpenAI == nil || creds.OpenAI.APIKey != "sk-test456" {
		t.Errorf("openai key not loaded correctly")
	}
	if creds.Google != nil {
		t.Errorf("expected google section to be nil")
	}
}

func TestApplyRespectsExistingEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("OPENAI_API_KEY", "")

	creds := &Credentials{
		Anthropic: &ProviderCreds{APIKey: "from-file"},
		OpenAI:    &ProviderCreds{APIKey: "openai-from-file"},
	}
	creds.Apply()

	if got := os.Getenv("ANTHROPIC_API_KEY"); got != "from-env" {
		t.Errorf("expected env value to win, got %q", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "openai-from-file" {
		t.Errorf("expected file value to be applied, got %q", got)
	}
}

func TestApplyNil(t *testing.T) {
	var creds *Credentials
	creds.Apply() // must not panic
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Errorf("expected error for invalid toml")
	}
}
