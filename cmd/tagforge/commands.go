package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vinayprograms/tagforge/internal/executor"
	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/replay"
	"github.com/vinayprograms/tagforge/internal/session"
	"github.com/vinayprograms/tagforge/internal/setup"
)

// interruptContext returns a context cancelled by SIGINT/SIGTERM, so an
// interrupted tagging run is recorded as failed and can be resumed.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run generates a tag ontology.
func (c *OntologyCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	wf, err := rt.workflow(ctx)
	if err != nil {
		return err
	}
	if c.MaxSteps > 0 {
		wf.MaxSteps = c.MaxSteps
	}

	req := executor.OntologyRequest{
		Dataset:    c.Dataset,
		Output:     c.Output,
		TagCount:   rt.cfg.Agent.TagCount,
		Columns:    c.Columns,
		Steering:   c.Steering,
		SampleSize: rt.cfg.Agent.SampleSize,
		SampleSeed: rt.cfg.Agent.SampleSeed,
	}
	if c.TagCount > 0 {
		req.TagCount = c.TagCount
	}
	if c.SampleSize > 0 {
		req.SampleSize = c.SampleSize
	}
	if c.Seed != 0 {
		req.SampleSeed = c.Seed
	}

	auth, _, err := wf.GenerateOntology(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d tags to %s\n", len(auth.Tags), c.Output)
	return nil
}

// Run tags every dataset row.
func (c *TagCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	wf, err := rt.workflow(ctx)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = strings.TrimSuffix(c.Dataset, ".csv") + ".tagged.csv"
	}
	column := c.Column
	if column == "" {
		column = rt.cfg.Agent.TagColumn
	}
	workers := c.Workers
	if workers <= 0 {
		workers = rt.cfg.Agent.Workers
	}

	if _, err := wf.TagRows(ctx, executor.TagRequest{
		Dataset:      c.Dataset,
		Output:       output,
		OntologyPath: c.Ontology,
		Column:       column,
		Columns:      c.Columns,
		Workers:      workers,
		ResumeID:     c.Resume,
	}); err != nil {
		return err
	}
	fmt.Printf("wrote tagged dataset to %s\n", output)
	return nil
}

// Run lists catalog models.
func (c *ModelsCmd) Run(cli *CLI) error {
	ctx, cancel := interruptContext()
	defer cancel()

	models, err := llm.ListAllModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	fmt.Printf("%-14s %-40s %10s %9s %9s\n",
		"PROVIDER", "MODEL", "CONTEXT", "$IN/1M", "$OUT/1M")
	for _, m := range models {
		if c.Provider != "" && m.Provider != c.Provider {
			continue
		}
		fmt.Printf("%-14s %-40s %10s %9.2f %9.2f\n",
			m.Provider, m.ID,
			progress.FormatTokenCount(m.ContextWindow),
			m.CostPer1MIn, m.CostPer1MOut)
	}
	return nil
}

// Run lists recorded runs.
func (c *RunsListCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.requireSessions()
	if err != nil {
		return err
	}
	runs, err := sessions.List()
	if err != nil {
		return err
	}
	fmt.Print(replay.RenderList(runs))
	return nil
}

// Run prints a run timeline to stdout.
func (c *RunsShowCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.requireSessions()
	if err != nil {
		return err
	}
	run, err := sessions.Get(c.ID)
	if err != nil {
		return err
	}
	return rt.replayer().Replay(run)
}

// Run deletes a recorded run.
func (c *RunsDeleteCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.requireSessions()
	if err != nil {
		return err
	}
	run, err := sessions.Get(c.ID)
	if err != nil {
		return err
	}
	if err := sessions.Delete(run.ID); err != nil {
		return err
	}
	fmt.Printf("deleted run %s\n", run.ID)
	return nil
}

// Run starts the setup wizard.
func (c *SetupCmd) Run(cli *CLI) error {
	result, err := setup.Run()
	if err != nil {
		return err
	}
	if result.Aborted {
		fmt.Println("setup aborted")
		return nil
	}
	fmt.Printf("configured %s/%s; config at %s\n", result.Provider, result.Model, setup.ConfigPath())
	return nil
}

// Run replays a run in the pager (or stdout with --no-pager).
func (c *ReplayCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.requireSessions()
	if err != nil {
		return err
	}
	run, err := sessions.Get(c.ID)
	if err != nil {
		return err
	}

	r := rt.replayer()
	switch {
	case c.Live:
		path, err := rt.watchPath(run.ID)
		if err != nil {
			return err
		}
		return r.ReplayLive(path, func() (*session.Run, error) {
			return sessions.Get(run.ID)
		})
	case c.NoPager:
		return r.Replay(run)
	default:
		return r.ReplayInteractive(run)
	}
}
