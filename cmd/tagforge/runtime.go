// Package main provides runtime wiring for the tagforge commands.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/tagforge/internal/config"
	"github.com/vinayprograms/tagforge/internal/executor"
	"github.com/vinayprograms/tagforge/internal/llm"
	"github.com/vinayprograms/tagforge/internal/logging"
	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/replay"
	"github.com/vinayprograms/tagforge/internal/sandbox"
	"github.com/vinayprograms/tagforge/internal/session"
	"github.com/vinayprograms/tagforge/internal/telemetry"
)

// runtime assembles the components a command needs from the CLI flags and
// the config file. Commands build one, use it, and Close it.
type runtime struct {
	cli   *CLI
	cfg   *config.Config
	runID string

	logger   *logging.Logger
	emitter  progress.Emitter
	sessions *session.Manager
	store    session.Store

	closers []func()
}

// newRuntime loads config and sets up logging, progress, run storage and
// telemetry. Model wiring happens lazily in workflow(), so read-only
// commands (runs, replay) never require a credential.
func newRuntime(cli *CLI) (*runtime, error) {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cli: cli, cfg: cfg, runID: uuid.NewString()}

	rt.logger = logging.New().WithComponent("tagforge")
	if cli.Verbose {
		rt.logger.SetLevel(logging.LevelDebug)
	}

	if err := rt.setupProgress(); err != nil {
		return nil, err
	}
	if err := rt.setupSessions(); err != nil {
		return nil, err
	}
	if err := rt.setupTelemetry(); err != nil {
		return nil, err
	}
	return rt, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func (rt *runtime) setupProgress() error {
	emitters := progress.Multi{}
	if !rt.cli.Quiet {
		emitters = append(emitters, progress.NewLineEmitter(os.Stderr))
	}

	natsURL := rt.cli.ProgressNATS
	if natsURL == "" {
		natsURL = rt.cfg.Progress.NATSURL
	}
	if natsURL != "" {
		subject := rt.cfg.Progress.Subject
		if subject == "" {
			subject = "tagforge.progress." + rt.runID
		}
		nats, err := progress.NewNATS(natsURL, subject)
		if err != nil {
			return fmt.Errorf("failed to connect progress NATS: %w", err)
		}
		emitters = append(emitters, nats)
		rt.closers = append(rt.closers, nats.Close)
	}

	if len(emitters) == 0 {
		rt.emitter = progress.Nop{}
		return nil
	}
	rt.emitter = emitters
	return nil
}

func (rt *runtime) setupSessions() error {
	switch rt.cfg.Session.Store {
	case "none":
		return nil
	case "file":
		dir := filepath.Join(rt.cfg.SessionPath(), "runs")
		store, err := session.NewFileStore(dir)
		if err != nil {
			return err
		}
		rt.store = store
	case "", "sqlite":
		path := rt.cfg.SessionPath()
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
		store, err := session.NewSQLiteStore(filepath.Join(path, "runs.db"))
		if err != nil {
			return err
		}
		rt.store = store
		rt.closers = append(rt.closers, func() { store.Close() })
	default:
		return fmt.Errorf("unknown session store %q (expected sqlite, file or none)", rt.cfg.Session.Store)
	}
	rt.sessions = session.NewManager(rt.store)
	return nil
}

func (rt *runtime) setupTelemetry() error {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
		Mode:           rt.cfg.Telemetry.Mode,
		Endpoint:       rt.cfg.Telemetry.Endpoint,
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	})
	return nil
}

// modelString resolves the model selection: flag, then config, then the
// environment default.
func (rt *runtime) modelString() string {
	if rt.cli.Model != "" {
		return rt.cli.Model
	}
	if rt.cfg.LLM.Model != "" {
		if rt.cfg.LLM.Provider != "" {
			return rt.cfg.LLM.Provider + "/" + rt.cfg.LLM.Model
		}
		return rt.cfg.LLM.Model
	}
	return llm.DefaultModelString()
}

// promptsDir resolves the prompt override directory: flag, then config.
func (rt *runtime) promptsDir() string {
	if rt.cli.Prompts != "" {
		return rt.cli.Prompts
	}
	return rt.cfg.Agent.Prompts
}

// workflow builds the agent workflow: provider, sandbox and prompts. This
// is the only place that needs a live credential.
func (rt *runtime) workflow(ctx context.Context) (*executor.Workflow, error) {
	providerName, modelName := llm.ParseModelString(rt.modelString())

	apiKey := ""
	if rt.cfg.LLM.APIKeyEnv != "" {
		apiKey = os.Getenv(rt.cfg.LLM.APIKeyEnv)
	}
	llmCfg := llm.Config{
		Provider:  providerName,
		Model:     modelName,
		APIKey:    apiKey,
		BaseURL:   rt.cfg.LLM.BaseURL,
		MaxTokens: rt.cfg.LLM.MaxTokens,
		Retry: llm.RetryConfig{
			MaxRetries:  rt.cfg.LLM.MaxRetries,
			InitBackoff: rt.cfg.LLM.InitBackoff,
			MaxBackoff:  rt.cfg.LLM.MaxBackoff,
		},
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := llm.NewBackend(llmCfg)
	if err != nil {
		return nil, err
	}

	prompts, err := executor.LoadPrompts(rt.promptsDir())
	if err != nil {
		return nil, err
	}

	sb := sandbox.New(rt.cfg.Sandbox.Imports,
		time.Duration(rt.cfg.Sandbox.Timeout)*time.Second)

	return &executor.Workflow{
		Provider:     provider,
		ProviderName: providerName,
		ModelName:    modelName,
		ModelInfo:    llm.LookupModel(ctx, providerName, modelName),
		MaxSteps:     rt.cfg.Agent.MaxSteps,
		Sandbox:      sb,
		Prompts:      prompts,
		Logger:       rt.logger,
		Emitter:      rt.emitter,
		Sessions:     rt.sessions,
		RunID:        rt.runID,
	}, nil
}

// requireSessions returns the run manager or an error for commands that
// cannot work without stored runs.
func (rt *runtime) requireSessions() (*session.Manager, error) {
	if rt.sessions == nil {
		return nil, fmt.Errorf("run recording is disabled (session.store = none)")
	}
	return rt.sessions, nil
}

// watchPath returns the file to watch for live replay of the given run.
func (rt *runtime) watchPath(runID string) (string, error) {
	switch store := rt.store.(type) {
	case *session.FileStore:
		return store.RunPath(runID), nil
	case *session.SQLiteStore:
		return store.Path(), nil
	default:
		return "", fmt.Errorf("live replay needs a file-backed run store")
	}
}

// replayer builds a Replayer writing to stdout.
func (rt *runtime) replayer() *replay.Replayer {
	return replay.New(os.Stdout, rt.cli.Verbose)
}

// Close releases runtime resources in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
