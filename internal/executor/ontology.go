package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vinayprograms/tagforge/internal/dataset"
	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/logging"
	"github.com/vinayprograms/tagforge/internal/ontology"
	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/sandbox"
	"github.com/vinayprograms/tagforge/internal/session"
	"github.com/vinayprograms/tagforge/internal/tools"
)

// Workflow bundles the collaborators shared by the ontology and tagging
// runs. The cmd layer builds one per invocation.
type Workflow struct {
	Provider     llm.Provider
	ProviderName string
	ModelName    string
	ModelInfo    *llm.ModelInfo // nil when the catalog does not know the model
	MaxSteps     int
	Sandbox      *sandbox.Sandbox
	Prompts      *PromptSet
	Logger       *logging.Logger
	Emitter      progress.Emitter
	Sessions     *session.Manager // nil disables run recording

	// RunID, when set, names the new run instead of a generated ID, so
	// callers can announce the run (progress subjects) before it starts.
	RunID string
}

func (w *Workflow) emit(e progress.Event) {
	if w.Emitter != nil {
		w.Emitter.Emit(e)
	}
}

func (w *Workflow) logger() *logging.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return logging.New().WithComponent("executor")
}

// headRows bounds how many sampled records are embedded in the task prompt.
const headRows = 25

// OntologyRequest parameterizes one ontology generation run.
type OntologyRequest struct {
	Dataset    string
	Output     string
	TagCount   int
	Columns    []string
	Steering   string
	SampleSize int
	SampleSeed int64
}

// GenerateOntology runs the ontology workflow: sample the dataset, run the
// agent loop, validate the proposal, and write the artifact.
func (w *Workflow) GenerateOntology(ctx context.Context, req OntologyRequest) (*ontology.Ontology, *session.Run, error) {
	logger := w.logger()
	logger.RunStart(session.ModeOntology, w.ModelName, req.Dataset)
	runStarted := time.Now()
	runStatus := session.StatusFailed
	defer func() {
		logger.RunComplete(session.ModeOntology, time.Since(runStarted), runStatus)
	}()
	w.emit(progress.Status("warming up"))

	table, err := dataset.Load(req.Dataset)
	if err != nil {
		w.emit(progress.Error(err.Error()))
		return nil, nil, err
	}

	focused, warnings := table.Focus(req.Columns)
	for _, warn := range warnings {
		logger.Warn(warn)
	}

	sampled := focused.Sample(req.SampleSize, req.SampleSeed)
	sampleJSON, err := sampled.HeadJSON(headRows)
	if err != nil {
		return nil, nil, err
	}

	data := ontologyPromptData{
		Shape:      table.Shape(),
		Columns:    strings.Join(focused.Columns, ", "),
		SampleData: sampleJSON,
		TagCount:   req.TagCount,
		Steering:   req.Steering,
	}
	system, err := w.Prompts.Render(PromptOntologySystem, data)
	if err != nil {
		return nil, nil, err
	}
	task, err := w.Prompts.Render(PromptOntologyTask, data)
	if err != nil {
		return nil, nil, err
	}

	run, record := w.startRun(session.ModeOntology, req.Dataset, req.Output)

	registry := tools.NewRegistry()
	registry.Register(tools.NewRunCode(w.Sandbox))
	registry.Register(tools.NewOntologyFinalAnswer())

	runner := &Runner{
		Provider: w.Provider,
		Registry: registry,
		MaxSteps: w.MaxSteps,
		Logger:   logger,
		Emitter:  w.Emitter,
		Record:   record,
	}

	ctx, span := startRunSpan(ctx, session.ModeOntology, w.ModelName, req.Dataset)
	w.emit(progress.Working("analyzing sample"))

	outcome, err := runner.Run(ctx, system, task)
	w.recordUsage(run, outcome)
	if err != nil {
		endRunSpan(span, string(StateFailed), totalTokens(outcome), err)
		w.failRun(run, err)
		w.emit(progress.Error(fmt.Sprintf("model call failed: %v", err)))
		return nil, run, err
	}

	proposed, err := w.ontologyPayload(outcome)
	if err != nil {
		endRunSpan(span, string(outcome.State), totalTokens(outcome), err)
		w.failRun(run, err)
		w.emit(progress.Error("no tags generated"))
		return nil, run, err
	}

	validated, valWarnings, err := ontology.ValidateOntology(proposed)
	for _, warn := range valWarnings {
		logger.Warn(warn)
	}
	if err != nil {
		endRunSpan(span, string(outcome.State), totalTokens(outcome), err)
		w.failRun(run, err)
		w.emit(progress.Error("no tags generated"))
		return nil, run, err
	}

	if err := validated.Save(req.Output); err != nil {
		endRunSpan(span, string(outcome.State), totalTokens(outcome), err)
		w.failRun(run, err)
		return nil, run, err
	}

	summary := forgedSummary(validated)
	endRunSpan(span, string(StateSuccess), totalTokens(outcome), nil)
	w.completeRun(run, summary)
	w.emit(progress.Complete(summary))
	runStatus = session.StatusComplete
	return validated, run, nil
}

// ontologyPayload recovers the tag mapping from the loop outcome:
// structured final_answer first, then JSON extracted from the last text.
func (w *Workflow) ontologyPayload(outcome *Outcome) (map[string]interface{}, error) {
	if outcome.State == StateSuccess && outcome.Structured != nil {
		return outcome.Structured, nil
	}
	if outcome.Text == "" {
		return nil, fmt.Errorf("agent produced no answer within %d steps", outcome.Steps)
	}
	proposed, err := Extract(outcome.Text)
	if err != nil {
		var extractErr *ExtractionError
		if errors.As(err, &extractErr) {
			w.logger().ExtractionFailed(len(extractErr.Raw), extractErr.Err)
			// The uncapped text goes to stderr so the operator can
			// diagnose (and salvage) the model's answer.
			fmt.Fprintf(os.Stderr, "--- RAW ---\n%s\n", extractErr.Raw)
		}
		return nil, err
	}
	return proposed, nil
}

// forgedSummary renders the completion message: first four tags, then an
// ellipsis when there are more.
func forgedSummary(o *ontology.Ontology) string {
	names := o.Names()
	shown := names
	suffix := ""
	if len(names) > 4 {
		shown = names[:4]
		suffix = "…"
	}
	return fmt.Sprintf("forged %d tags: %s%s", len(names), strings.Join(shown, ", "), suffix)
}

func totalTokens(o *Outcome) int64 {
	if o == nil {
		return 0
	}
	return o.Usage.InputTokens + o.Usage.OutputTokens
}

// startRun opens a recorded run when a session manager is configured, and
// returns the event sink to hand to the Runner.
func (w *Workflow) startRun(mode, ds, output string) (*session.Run, func(session.Event)) {
	if w.Sessions == nil {
		return nil, nil
	}
	run := session.NewRun(mode, w.ProviderName, w.ModelName, ds, output)
	if w.RunID != "" {
		run.ID = w.RunID
	}
	if err := w.Sessions.Update(run); err != nil {
		w.logger().Warn("failed to create run record", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return run, func(ev session.Event) {
		if err := w.Sessions.AppendEvent(run, ev); err != nil {
			w.logger().Warn("failed to record event", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (w *Workflow) recordUsage(run *session.Run, outcome *Outcome) {
	if run == nil || outcome == nil {
		return
	}
	run.InputTokens = outcome.Usage.InputTokens
	run.OutputTokens = outcome.Usage.OutputTokens
	run.Cost = llm.EstimateCost(w.ModelInfo, outcome.Usage)
}

func (w *Workflow) completeRun(run *session.Run, result string) {
	if run == nil || w.Sessions == nil {
		return
	}
	if err := w.Sessions.Complete(run, result); err != nil {
		w.logger().Warn("failed to finalize run record", map[string]interface{}{"error": err.Error()})
	}
}

func (w *Workflow) failRun(run *session.Run, cause error) {
	if run == nil || w.Sessions == nil {
		return
	}
	if err := w.Sessions.Fail(run, cause.Error()); err != nil {
		w.logger().Warn("failed to finalize run record", map[string]interface{}{"error": err.Error()})
	}
}
