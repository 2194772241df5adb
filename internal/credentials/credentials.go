// Package credentials loads API keys from standard locations.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds API keys loaded from credentials.toml
type Credentials struct {
	Anthropic   *ProviderCreds `toml:"anthropic"`
	OpenAI      *ProviderCreds `toml:"openai"`
	Google      *ProviderCreds `toml:"google"`
	HuggingFace *ProviderCreds `toml:"huggingface"`
	OpenRouter  *ProviderCreds `toml:"openrouter"`
}

// ProviderCreds holds credentials for a single provider
type ProviderCreds struct {
	APIKey string `toml:"api_key"`
}

// StandardPaths returns the credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "tagforge", "credentials.toml"),
			filepath.Join(home, ".tagforge", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first available standard location
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil // No credentials file found (not an error)
}

// LoadFile loads credentials from a specific file
func LoadFile(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Apply sets environment variables from loaded credentials (if not already
// set). Process env always wins over the file.
func (c *Credentials) Apply() {
	if c == nil {
		return
	}

	if c.Anthropic != nil && c.Anthropic.APIKey != "" {
		setIfEmpty("ANTHROPIC_API_KEY", c.Anthropic.APIKey)
	}
	if c.OpenAI != nil && c.OpenAI.APIKey != "" {
		setIfEmpty("OPENAI_API_KEY", c.OpenAI.APIKey)
	}
	if c.Google != nil && c.Google.APIKey != "" {
		setIfEmpty("GEMINI_API_KEY", c.Google.APIKey)
	}
	if c.HuggingFace != nil && c.HuggingFace.APIKey != "" {
		setIfEmpty("HUGGINGFACE_API_KEY", c.HuggingFace.APIKey)
	}
	if c.OpenRouter != nil && c.OpenRouter.APIKey != "" {
		setIfEmpty("OPENROUTER_API_KEY", c.OpenRouter.APIKey)
	}
}

func setIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
