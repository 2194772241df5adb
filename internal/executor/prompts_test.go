package executor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadBuiltinPrompts(t *testing.T) {
	set, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}

	out, err := set.Render(PromptOntologyTask, ontologyPromptData{
		Shape:      "120 rows x 3 columns",
		Columns:    "title, body, author",
		SampleData: `[{"title":"a"}]`,
		TagCount:   8,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "120 rows x 3 columns") {
		t.Errorf("shape not rendered: %q", out)
	}
	if !strings.Contains(out, "8") {
		t.Errorf("tag count not rendered: %q", out)
	}
	if strings.Contains(out, "---") {
		t.Errorf("frontmatter leaked into rendered prompt: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "# ") {
		t.Errorf("heading line leaked into rendered prompt: %q", out)
	}
}

func TestRenderSteeringConditional(t *testing.T) {
	set, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}

	without, err := set.Render(PromptOntologyTask, ontologyPromptData{
		Shape: "1 rows x 1 columns", Columns: "a", SampleData: "[]", TagCount: 5,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	with, err := set.Render(PromptOntologyTask, ontologyPromptData{
		Shape: "1 rows x 1 columns", Columns: "a", SampleData: "[]", TagCount: 5,
		Steering: "focus on sentiment",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(with, "focus on sentiment") {
		t.Errorf("steering not rendered: %q", with)
	}
	if strings.Contains(without, "focus on sentiment") {
		t.Errorf("steering rendered without input")
	}
}

func TestLoadPromptOverride(t *testing.T) {
	dir := t.TempDir()
	override := "---\nname: ontology_system\n---\n# Custom\n\nYou are a custom analyst.\n"
	if err := os.WriteFile(filepath.Join(dir, "ontology_system.md"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := LoadPrompts(dir)
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}

	out, err := set.Render(PromptOntologySystem, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "custom analyst") {
		t.Errorf("override not used: %q", out)
	}
	if strings.Contains(out, "# Custom") {
		t.Errorf("heading not stripped from override: %q", out)
	}

	// Other prompts still come from the built-in set.
	if _, err := set.Render(PromptRowSystem, nil); err != nil {
		t.Errorf("builtin fallback broken: %v", err)
	}
}

func TestRenderMissingPlaceholder(t *testing.T) {
	set, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}
	if _, err := set.Render(PromptRowTask, map[string]interface{}{"RowJSON": "{}"}); err == nil {
		t.Errorf("expected error for missing template data")
	}
}

func TestRenderUnknownPrompt(t *testing.T) {
	set, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}
	if _, err := set.Render("no_such_prompt", nil); err == nil {
		t.Errorf("expected error for unknown prompt name")
	}
}
