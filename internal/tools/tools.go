// Package tools provides the tool registry and the built-in tools the
// tagging agent exposes to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/sandbox"
)

// FinalAnswerName is the tool the model must call to finish a run. The
// executor intercepts it before dispatch, so its Execute is never reached
// during a normal run.
const FinalAnswerName = "final_answer"

// RunCodeName is the sandboxed code execution tool.
const RunCodeName = "run_code"

// Tool represents an executable tool.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Registry holds all registered tools.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry. Re-registering a name replaces it.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Definitions returns LLM-facing definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Dispatch executes the named tool and renders its result as a string.
// Unknown tools and tool errors come back as readable text so the caller
// can feed them straight into the conversation.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) string {
	t := r.Get(call.Name)
	if t == nil {
		return fmt.Sprintf("unknown tool %q", call.Name)
	}
	result, err := t.Execute(ctx, call.Args)
	if err != nil {
		return fmt.Sprintf("tool error: %v", err)
	}
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return "(no result)"
	}
	if data, err := json.Marshal(result); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", result)
}

// --- Built-in tools ---

// finalAnswerTool carries the mode-specific answer schema. Intercepted by
// the executor; Execute exists only to satisfy the interface.
type finalAnswerTool struct {
	description string
	parameters  map[string]interface{}
}

// NewOntologyFinalAnswer returns the final_answer tool for ontology
// generation: a tag-name -> description object, plus optional notes.
func NewOntologyFinalAnswer() Tool {
	return &finalAnswerTool{
		description: "Submit the finished tag ontology. Call this exactly once, when the ontology is complete.",
		parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"tags": map[string]interface{}{
					"type":        "object",
					"description": "Mapping of tag name to a one-sentence description of when the tag applies",
					"additionalProperties": map[string]interface{}{
						"type": "string",
					},
				},
				"notes": map[string]interface{}{
					"type":        "string",
					"description": "Optional notes on coverage or edge cases",
				},
			},
			"required": []string{"tags"},
		},
	}
}

// NewRowFinalAnswer returns the final_answer tool for row tagging: the
// list of tags to assign to the row under consideration.
func NewRowFinalAnswer() Tool {
	return &finalAnswerTool{
		description: "Submit the tags for the current row. Call this exactly once, when you have decided.",
		parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Tags that apply to this row",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			"required": []string{"tags"},
		},
	}
}

func (t *finalAnswerTool) Name() string                       { return FinalAnswerName }
func (t *finalAnswerTool) Description() string                { return t.description }
func (t *finalAnswerTool) Parameters() map[string]interface{} { return t.parameters }

func (t *finalAnswerTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return args, nil
}

// runCodeTool executes model-written Go snippets in the sandbox. All
// sandbox failures are data, so Execute never returns an error.
type runCodeTool struct {
	sandbox *sandbox.Sandbox
}

// NewRunCode returns the run_code tool backed by the given sandbox.
func NewRunCode(sb *sandbox.Sandbox) Tool {
	return &runCodeTool{sandbox: sb}
}

func (t *runCodeTool) Name() string { return RunCodeName }

func (t *runCodeTool) Description() string {
	return "Execute a Go snippet to inspect or compute over the data. " +
		"The snippet must define `func Run() any`; its return value comes back as text. " +
		"Only a small set of stdlib imports is available (no filesystem, network, or exec)."
}

func (t *runCodeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Go source defining func Run() any. A package clause is optional.",
			},
		},
		"required": []string{"code"},
	}
}

func (t *runCodeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	code, ok := args["code"].(string)
	if !ok || code == "" {
		return "run_code requires a non-empty `code` argument", nil
	}
	return t.sandbox.Execute(ctx, code), nil
}
