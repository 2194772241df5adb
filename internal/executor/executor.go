// Package executor runs the step-budgeted agent loop and the two workflows
// built on it: tag ontology generation and dataset row tagging.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/logging"
	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/session"
	"github.com/vinayprograms/tagforge/internal/tools"
)

// DefaultMaxSteps is the model-call budget for one run of the loop.
const DefaultMaxSteps = 4

// State is the terminal state of one loop run.
type State string

const (
	// StateSuccess: the model called final_answer within budget.
	StateSuccess State = "success"
	// StateExhausted: the budget ran out without a final_answer call.
	StateExhausted State = "exhausted"
	// StateFailed: the provider failed; the loop could not continue.
	StateFailed State = "failed"
)

// Outcome is the result of one loop run. Structured holds the final_answer
// arguments on success; Text holds the model's last plain reply, which
// callers may try to salvage when the budget ran out.
type Outcome struct {
	State      State
	Structured map[string]interface{}
	Text       string
	Usage      llm.Usage
	Steps      int
}

// Runner drives a tool-augmented conversation against a fixed step budget.
// Each model call is one step; tool execution between calls is free. Tool
// failures are conversation data, never loop control flow.
type Runner struct {
	Provider llm.Provider
	Registry *tools.Registry
	MaxSteps int
	Logger   *logging.Logger
	Emitter  progress.Emitter

	// Record, when set, receives session events as the loop progresses.
	Record func(session.Event)
}

func (r *Runner) maxSteps() int {
	if r.MaxSteps > 0 {
		return r.MaxSteps
	}
	return DefaultMaxSteps
}

func (r *Runner) emit(e progress.Event) {
	if r.Emitter != nil {
		r.Emitter.Emit(e)
	}
}

func (r *Runner) record(e session.Event) {
	if r.Record != nil {
		e.Timestamp = time.Now()
		r.Record(e)
	}
}

// Run executes the loop with the given system and task prompts. The
// returned error is non-nil only for StateFailed; exhaustion is a valid
// outcome the caller decides how to handle.
func (r *Runner) Run(ctx context.Context, system, prompt string) (*Outcome, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.New().WithComponent("executor")
	}

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
	r.record(session.Event{Type: session.EventSystem, Content: system})
	r.record(session.Event{Type: session.EventUser, Content: prompt})

	outcome := &Outcome{State: StateExhausted}
	budget := r.maxSteps()
	nudged := false

	for step := 1; step <= budget; step++ {
		logger.StepStart(step, budget)
		ctx, span := startStepSpan(ctx, step)

		resp, err := r.Provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    r.Registry.Definitions(),
		})
		if err != nil {
			endStepSpan(span, err)
			outcome.State = StateFailed
			outcome.Steps = step
			r.record(session.Event{Type: session.EventAssistant, Step: step, Error: err.Error()})
			return outcome, err
		}

		outcome.Usage.Add(resp)
		outcome.Steps = step
		logger.StepComplete(step, outcome.Usage.InputTokens, outcome.Usage.OutputTokens, resp.StopReason)
		r.emit(progress.Status(fmt.Sprintf("In: %s; Out: %s.",
			progress.FormatTokenCount(outcome.Usage.InputTokens),
			progress.FormatTokenCount(outcome.Usage.OutputTokens))))

		if resp.Content != "" {
			r.record(session.Event{Type: session.EventAssistant, Step: step, Content: resp.Content})
		}

		// final_answer ends the run, regardless of anything else in the turn.
		if final := findFinalAnswer(resp.ToolCalls); final != nil {
			endStepSpan(span, nil)
			outcome.State = StateSuccess
			outcome.Structured = final.Args
			outcome.Text = resp.Content
			r.record(session.Event{Type: session.EventToolCall, Step: step,
				Tool: tools.FinalAnswerName, Args: final.Args})
			return outcome, nil
		}

		if len(resp.ToolCalls) == 0 {
			// Plain text without final_answer does not finish the run. Keep
			// the text as a salvage candidate and redirect the model once.
			outcome.Text = resp.Content
			messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})
			if !nudged {
				nudge := "Do not answer in plain text. Call the final_answer tool with your result."
				messages = append(messages, llm.Message{Role: "user", Content: nudge})
				r.record(session.Event{Type: session.EventUser, Step: step, Content: nudge})
				nudged = true
			}
			endStepSpan(span, nil)
			continue
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			start := time.Now()
			logger.ToolCall(tc.Name)
			r.record(session.Event{Type: session.EventToolCall, Step: step, Tool: tc.Name, Args: tc.Args})

			result := r.Registry.Dispatch(ctx, tc)
			duration := time.Since(start)
			logger.ToolResult(tc.Name, duration, nil)
			r.record(session.Event{Type: session.EventToolResult, Step: step, Tool: tc.Name,
				Content: result, DurationMs: duration.Milliseconds()})

			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
		endStepSpan(span, nil)
	}

	return outcome, nil
}

func findFinalAnswer(calls []llm.ToolCall) *llm.ToolCall {
	for i := range calls {
		if calls[i].Name == tools.FinalAnswerName {
			return &calls[i]
		}
	}
	return nil
}
