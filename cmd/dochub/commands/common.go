// Package commands defines the dochub CLI surface.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"dochub.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build documentation for all packages in dependency order"`
	Plan    PlanCmd    `cmd:"" help:"Print the wave plan without executing any builds"`
	Hub     HubCmd     `cmd:"" help:"Re-assemble the hub from an existing build report"`
	History HistoryCmd `cmd:"" help:"List recent orchestration runs"`
	Watch   WatchCmd   `cmd:"" help:"Run continuously, rebuilding on schedule and manifest changes"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; sets up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
