package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the bingo server"`
	Play    PlayCmd          `cmd:"" help:"Play bingo in the terminal"`
	Bot     BotCmd           `cmd:"" help:"Run a headless bot seat against a server"`
	NewGame NewGameCmd       `cmd:"new-game" help:"Create a game and print its id"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bingoforbots"),
		kong.Description("Turn-based multiplayer bingo with bot opponents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
