package executor

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var builtinPrompts embed.FS

// Prompt template names.
const (
	PromptOntologySystem = "ontology_system"
	PromptOntologyTask   = "ontology_task"
	PromptRowSystem      = "row_system"
	PromptRowTask        = "row_task"
)

// promptMeta is the YAML frontmatter of a prompt file.
type promptMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PromptSet holds the parsed prompt templates, either the built-in set or
// overrides loaded from a directory.
type PromptSet struct {
	templates map[string]*template.Template
}

// LoadPrompts returns the prompt set. With a non-empty dir, any <name>.md
// file there replaces the built-in template of the same name; missing files
// fall back to the built-ins.
func LoadPrompts(dir string) (*PromptSet, error) {
	set := &PromptSet{templates: make(map[string]*template.Template)}

	names := []string{PromptOntologySystem, PromptOntologyTask, PromptRowSystem, PromptRowTask}
	for _, name := range names {
		data, err := builtinPrompts.ReadFile("prompts/" + name + ".md")
		if err != nil {
			return nil, fmt.Errorf("missing built-in prompt %s: %w", name, err)
		}
		if dir != "" {
			if override, err := os.ReadFile(filepath.Join(dir, name+".md")); err == nil {
				data = override
			}
		}
		tmpl, err := parsePrompt(name, data)
		if err != nil {
			return nil, err
		}
		set.templates[name] = tmpl
	}
	return set, nil
}

// parsePrompt strips optional YAML frontmatter and compiles the body.
func parsePrompt(name string, data []byte) (*template.Template, error) {
	body := string(data)
	if strings.HasPrefix(body, "---\n") {
		rest := body[4:]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return nil, fmt.Errorf("prompt %s: unterminated frontmatter", name)
		}
		var meta promptMeta
		if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
			return nil, fmt.Errorf("prompt %s: invalid frontmatter: %w", name, err)
		}
		body = strings.TrimLeft(rest[end+4:], "\n")
	}

	// A leading markdown heading is documentation, not prompt text.
	if strings.HasPrefix(body, "# ") {
		if i := strings.Index(body, "\n"); i >= 0 {
			body = strings.TrimLeft(body[i+1:], "\n")
		}
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", name, err)
	}
	return tmpl, nil
}

// Render executes the named template against data.
func (p *PromptSet) Render(name string, data interface{}) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// ontologyPromptData fills the ontology generation templates.
type ontologyPromptData struct {
	Shape      string
	Columns    string
	SampleData string
	TagCount   int
	Steering   string
}

// rowPromptData fills the row tagging templates.
type rowPromptData struct {
	OntologyJSON string
	RowJSON      string
}
