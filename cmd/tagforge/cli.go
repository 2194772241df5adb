// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Ontology OntologyCmd `cmd:"" help:"Generate a tag ontology from a CSV dataset"`
	Tag      TagCmd      `cmd:"" help:"Tag every row of a CSV dataset"`
	Models   ModelsCmd   `cmd:"" help:"List known models from the catalog"`
	Runs     RunsCmd     `cmd:"" help:"Manage recorded runs"`
	Replay   ReplayCmd   `cmd:"" help:"Replay a recorded run"`
	Setup    SetupCmd    `cmd:"" help:"Interactive setup wizard"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`

	Config       string `help:"Config file path"`
	Model        string `short:"m" help:"Model as provider/model (overrides config)"`
	Prompts      string `help:"Directory overriding the built-in prompt templates" placeholder:"DIR"`
	Verbose      bool   `short:"v" help:"Debug logging"`
	Quiet        bool   `short:"q" help:"Suppress progress output"`
	ProgressNATS string `help:"NATS URL to mirror progress events to" placeholder:"nats://host:4222"`
}

// OntologyCmd generates a tag ontology from a dataset sample.
type OntologyCmd struct {
	Dataset    string   `arg:"" help:"Input CSV path"`
	Output     string   `short:"o" default:"tags.json" help:"Ontology artifact path"`
	TagCount   int      `help:"Target number of tags (0 uses config default)"`
	Columns    []string `short:"c" help:"Columns to consider (repeatable)"`
	Steering   string   `short:"s" help:"Free-text guidance for the ontology"`
	SampleSize int      `help:"Rows to sample (0 uses config default)"`
	Seed       int64    `help:"Sampling seed (0 uses config default)"`
	MaxSteps   int      `help:"Agent step budget (0 uses config default)"`
}

// TagCmd tags every dataset row.
type TagCmd struct {
	Dataset  string   `arg:"" help:"Input CSV path"`
	Output   string   `short:"o" help:"Output CSV path (default: <input>.tagged.csv)"`
	Ontology string   `help:"Ontology artifact path (omit for free-form tagging)"`
	Column   string   `help:"Output column name"`
	Columns  []string `short:"c" help:"Columns shown to the model (repeatable)"`
	Workers  int      `short:"w" help:"Concurrent row workers (0 uses config default)"`
	Resume   string   `help:"Run ID to resume"`
}

// ModelsCmd lists catalog models.
type ModelsCmd struct {
	Provider string `arg:"" optional:"" help:"Limit to one provider"`
}

// RunsCmd manages stored runs.
type RunsCmd struct {
	List   RunsListCmd   `cmd:"" default:"1" help:"List recorded runs"`
	Show   RunsShowCmd   `cmd:"" help:"Show one run's timeline"`
	Delete RunsDeleteCmd `cmd:"" help:"Delete a recorded run"`
}

// RunsListCmd lists stored runs.
type RunsListCmd struct{}

// RunsShowCmd prints a run timeline without the pager.
type RunsShowCmd struct {
	ID string `arg:"" help:"Run ID (4+ character prefix accepted)"`
}

// RunsDeleteCmd removes a stored run.
type RunsDeleteCmd struct {
	ID string `arg:"" help:"Run ID (4+ character prefix accepted)"`
}

// ReplayCmd replays a run in the interactive pager.
type ReplayCmd struct {
	ID      string `arg:"" help:"Run ID (4+ character prefix accepted)"`
	Live    bool   `help:"Re-render as the run file changes"`
	NoPager bool   `help:"Print to stdout instead of the pager"`
}

// SetupCmd runs the interactive setup wizard.
type SetupCmd struct{}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
