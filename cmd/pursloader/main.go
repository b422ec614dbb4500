package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pursloader/cmd/pursloader/commands"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("pursloader"),
		kong.Description("Incremental PureScript build orchestration"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
