package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/tagforge/internal/dataset"
	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/ontology"
	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/session"
	"github.com/vinayprograms/tagforge/internal/tools"
)

// DefaultTagColumn is the appended output column name.
const DefaultTagColumn = "tagforge_tag"

// TagRequest parameterizes one row tagging run.
type TagRequest struct {
	Dataset      string
	Output       string
	OntologyPath string // empty enables free-form tagging
	Column       string
	Columns      []string
	Workers      int
	ResumeID     string
}

// TagRows tags every row of the dataset and writes the output CSV with an
// appended tag column. Per-row failures degrade to the sentinel; the run
// fails only when the dataset, artifact, or output itself is unusable.
func (w *Workflow) TagRows(ctx context.Context, req TagRequest) (*session.Run, error) {
	logger := w.logger()
	logger.RunStart(session.ModeTag, w.ModelName, req.Dataset)
	runStarted := time.Now()
	runStatus := session.StatusFailed
	defer func() {
		logger.RunComplete(session.ModeTag, time.Since(runStarted), runStatus)
	}()
	w.emit(progress.Status("warming up"))

	if req.Column == "" {
		req.Column = DefaultTagColumn
	}
	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}

	table, err := dataset.Load(req.Dataset)
	if err != nil {
		w.emit(progress.Error(err.Error()))
		return nil, err
	}

	var auth *ontology.Ontology
	ontologyJSON := ""
	if req.OntologyPath != "" {
		auth, err = ontology.Load(req.OntologyPath)
		if err != nil {
			w.emit(progress.Error(err.Error()))
			return nil, err
		}
		data, err := json.MarshalIndent(auth.Tags, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode ontology for prompt: %w", err)
		}
		ontologyJSON = string(data)
	}

	focused, warnings := table.Focus(req.Columns)
	for _, warn := range warnings {
		logger.Warn(warn)
	}

	system, err := w.Prompts.Render(PromptRowSystem, rowPromptData{})
	if err != nil {
		return nil, err
	}

	run, assignments, err := w.resumeOrCreate(req, table.Len())
	if err != nil {
		return nil, err
	}

	ctx, span := startRunSpan(ctx, session.ModeTag, w.ModelName, req.Dataset)
	w.emit(progress.Working(fmt.Sprintf("tagging %d rows", table.Len())))

	var (
		mu        sync.Mutex
		usage     llm.Usage
		completed int
		lastPct   = -1
	)
	pending := 0
	for _, a := range assignments {
		if a == "" {
			pending++
		}
	}
	done := table.Len() - pending

	reportProgress := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		total := done + completed
		if total%100 != 0 && total != table.Len() {
			return
		}
		pct := total * 100 / table.Len()
		if pct <= lastPct {
			return
		}
		lastPct = pct
		w.emit(progress.Working(fmt.Sprintf("tagged %d/%d rows", total, table.Len())).WithPercent(pct))
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				started := time.Now()
				assignment, rowUsage, err := w.tagOneRow(ctx, focused, idx, system, ontologyJSON, auth)
				if err != nil {
					// Cancelled mid-flight: leave the slot empty so a
					// resumed run retries this row.
					return
				}
				assignments[idx] = assignment

				mu.Lock()
				usage.InputTokens += rowUsage.InputTokens
				usage.OutputTokens += rowUsage.OutputTokens
				mu.Unlock()

				logger.RowTagged(idx, assignment)
				if run != nil && w.Sessions != nil {
					if err := w.Sessions.SaveRowResult(run, idx, assignment, started); err != nil {
						logger.Warn("failed to record row tag", map[string]interface{}{
							"row": idx, "error": err.Error(),
						})
					}
				}
				reportProgress()
			}
		}()
	}

	for idx, a := range assignments {
		if a != "" {
			continue // already tagged in the resumed run
		}
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if run != nil {
		run.InputTokens += usage.InputTokens
		run.OutputTokens += usage.OutputTokens
		run.Cost += llm.EstimateCost(w.ModelInfo, usage)
	}

	if err := ctx.Err(); err != nil {
		endRunSpan(span, string(StateFailed), usage.InputTokens+usage.OutputTokens, err)
		w.failRun(run, err)
		w.emit(progress.Error("tagging interrupted"))
		return run, err
	}

	tagged, err := table.WithColumn(req.Column, assignments)
	if err != nil {
		endRunSpan(span, string(StateFailed), usage.InputTokens+usage.OutputTokens, err)
		w.failRun(run, err)
		return run, err
	}
	if err := tagged.Write(req.Output); err != nil {
		endRunSpan(span, string(StateFailed), usage.InputTokens+usage.OutputTokens, err)
		w.failRun(run, err)
		w.emit(progress.Error(err.Error()))
		return run, err
	}

	dist := dataset.Distribution(assignments)
	fmt.Fprintf(os.Stderr, "Tag distribution:\n%s\n", dataset.FormatDistribution(dist))

	summary := fmt.Sprintf("tagged %d rows into %s", table.Len(), req.Output)
	endRunSpan(span, string(StateSuccess), usage.InputTokens+usage.OutputTokens, nil)
	w.completeRun(run, summary)
	w.emit(progress.Complete(summary))
	runStatus = session.StatusComplete
	return run, nil
}

// resumeOrCreate either reopens a prior run (prefilling its recorded row
// tags) or starts a fresh one. The assignments slice has one slot per row;
// empty means still to do.
func (w *Workflow) resumeOrCreate(req TagRequest, rows int) (*session.Run, []string, error) {
	assignments := make([]string, rows)

	if req.ResumeID == "" {
		run, _ := w.startRun(session.ModeTag, req.Dataset, req.Output)
		return run, assignments, nil
	}

	if w.Sessions == nil {
		return nil, nil, fmt.Errorf("cannot resume: run recording is disabled")
	}
	run, err := w.Sessions.Get(req.ResumeID)
	if err != nil {
		return nil, nil, err
	}
	if run.Mode != session.ModeTag {
		return nil, nil, fmt.Errorf("run %s is not a tagging run", run.ID)
	}
	if run.Dataset != req.Dataset {
		return nil, nil, fmt.Errorf("run %s was taken on %s, not %s", run.ID, run.Dataset, req.Dataset)
	}

	resumed := 0
	for idx, tags := range run.RowTags {
		if idx >= 0 && idx < rows {
			assignments[idx] = tags
			resumed++
		}
	}
	run.Status = session.StatusRunning
	run.Error = ""
	if err := w.Sessions.Update(run); err != nil {
		return nil, nil, err
	}
	w.logger().Info("resuming run", map[string]interface{}{
		"run":  run.ID,
		"done": resumed,
		"rows": rows,
	})
	return run, assignments, nil
}

// tagOneRow runs a single-step completion for one row and validates the
// proposal. Genuine failures degrade to the sentinel; a context
// cancellation is returned as an error instead, because an interrupted
// row was never decided and must stay eligible for resume.
func (w *Workflow) tagOneRow(ctx context.Context, table *dataset.Table, idx int, system, ontologyJSON string, auth *ontology.Ontology) (string, llm.Usage, error) {
	logger := w.logger()

	rowJSON, err := table.RecordJSON(idx)
	if err != nil {
		logger.RowDegraded(idx, err.Error())
		return ontology.Sentinel, llm.Usage{}, nil
	}
	task, err := w.Prompts.Render(PromptRowTask, rowPromptData{
		OntologyJSON: ontologyJSON,
		RowJSON:      rowJSON,
	})
	if err != nil {
		logger.RowDegraded(idx, err.Error())
		return ontology.Sentinel, llm.Usage{}, nil
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewRowFinalAnswer())
	runner := &Runner{
		Provider: w.Provider,
		Registry: registry,
		MaxSteps: 1,
		Logger:   logger,
	}

	outcome, err := runner.Run(ctx, system, task)
	if err != nil {
		if cause := ctx.Err(); cause != nil {
			return "", llm.Usage{}, cause
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", llm.Usage{}, err
		}
		logger.RowDegraded(idx, err.Error())
		return ontology.Sentinel, llm.Usage{}, nil
	}

	proposed := proposedTags(outcome)
	validated, dropped := ontology.ValidateAssignment(proposed, auth)
	for _, tag := range dropped {
		logger.TagDropped(tag, "not in ontology")
	}
	return ontology.JoinAssignment(validated), outcome.Usage, nil
}

// proposedTags recovers the tag list from a row outcome: structured
// final_answer, then extracted JSON, then a comma-split of the plain text.
func proposedTags(outcome *Outcome) []string {
	if outcome.State == StateSuccess && outcome.Structured != nil {
		if tags := tagList(outcome.Structured["tags"]); tags != nil {
			return tags
		}
	}
	text := strings.TrimSpace(outcome.Text)
	if text == "" {
		return nil
	}
	if parsed, err := Extract(text); err == nil {
		if tags := tagList(parsed["tags"]); tags != nil {
			return tags
		}
	}
	return strings.Split(text, ",")
}

// tagList coerces a decoded tags value into a string slice.
func tagList(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		tags := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	case []string:
		return val
	case string:
		return strings.Split(val, ",")
	}
	return nil
}
