package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dochub/cmd/dochub/commands"
	"git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("dochub"),
		kong.Description("Monorepo documentation build orchestrator"),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	if err == nil {
		return
	}

	adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	fmt.Fprintln(os.Stderr, adapter.FormatError(err))
	os.Exit(adapter.ExitCodeFor(err))
}
