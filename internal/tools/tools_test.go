package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/sandbox"
)

func TestRegistryDefinitionsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(NewRunCode(sandbox.New(nil, 0)))
	r.Register(NewOntologyFinalAnswer())

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != RunCodeName || defs[1].Name != FinalAnswerName {
		t.Errorf("definitions out of registration order: %s, %s", defs[0].Name, defs[1].Name)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Dispatch(context.Background(), llm.ToolCall{Name: "nope"})
	if !strings.Contains(result, "unknown tool") {
		t.Errorf("expected unknown tool message, got %q", result)
	}
}

func TestDispatchRunCode(t *testing.T) {
	r := NewRegistry()
	r.Register(NewRunCode(sandbox.New(nil, 0)))

	result := r.Dispatch(context.Background(), llm.ToolCall{
		Name: RunCodeName,
		Args: map[string]interface{}{
			"code": "func Run() any { return 6 * 7 }",
		},
	})
	if result != "42" {
		t.Errorf("expected 42, got %q", result)
	}
}

func TestDispatchRunCodeMissingArg(t *testing.T) {
	r := NewRegistry()
	r.Register(NewRunCode(sandbox.New(nil, 0)))

	result := r.Dispatch(context.Background(), llm.ToolCall{Name: RunCodeName})
	if !strings.Contains(result, "code") {
		t.Errorf("expected missing-code message, got %q", result)
	}
}

func TestFinalAnswerSchemas(t *testing.T) {
	ont := NewOntologyFinalAnswer()
	if ont.Name() != FinalAnswerName {
		t.Errorf("unexpected name %q", ont.Name())
	}
	props := ont.Parameters()["properties"].(map[string]interface{})
	tags := props["tags"].(map[string]interface{})
	if tags["type"] != "object" {
		t.Errorf("ontology tags should be an object, got %v", tags["type"])
	}

	row := NewRowFinalAnswer()
	props = row.Parameters()["properties"].(map[string]interface{})
	tags = props["tags"].(map[string]interface{})
	if tags["type"] != "array" {
		t.Errorf("row tags should be an array, got %v", tags["type"])
	}
}
