package main

import (
	"github.com/alecthomas/kong"

	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// CLI is the command line of tgstatctl.
type CLI struct {
	Globals

	TUI      TUICmd      `cmd:"" default:"1" help:"Interactive console (default)."`
	Channels ChannelsCmd `cmd:"" help:"List collected channels."`
	Collect  CollectCmd  `cmd:"" help:"Run one collection on the backend."`
	Export   ExportCmd   `cmd:"" help:"Download the channel export."`
	Jobs     JobsCmd     `cmd:"" help:"Show the collection run history."`
	Schedule ScheduleCmd `cmd:"" help:"Run collections on the configured schedule until interrupted."`
	Init     InitCmd     `cmd:"" help:"Create or edit the configuration interactively."`
	Version  VersionCmd  `cmd:"" help:"Print the version."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tgstatctl"),
		kong.Description("Console for a Telegram channel collection backend."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	err := ctx.Run(&cli.Globals)
	Close()
	ctx.FatalIfErrorf(err)
}
