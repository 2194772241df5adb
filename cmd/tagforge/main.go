// Package main is the entry point for the tagforge CLI.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/tagforge/internal/credentials"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Credentials file fills env vars the backends read; existing env
	// vars win. Then .env for anything else.
	if creds, _, err := credentials.Load(); err == nil {
		creds.Apply()
	}
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tagforge"),
		kong.Description("LLM-assisted tag ontology generation and CSV row tagging."),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// Run prints version information.
func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Printf("tagforge version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
