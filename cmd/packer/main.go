package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/packer/cmd/packer/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build    commands.BuildCmd    `cmd:"" help:"Bundle the project into the output directory"`
		Serve    commands.ServeCmd    `cmd:"" help:"Build in memory and serve with the dev server"`
		Validate commands.ValidateCmd `cmd:"" help:"Check a config document and report rule overlaps"`
		Init     commands.InitCmd     `cmd:"" help:"Write a starter config document"`
		Print    commands.PrintCmd    `cmd:"" help:"Print the config with defaults applied"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("packer"),
		kong.Description("Bundle web assets from a declarative build config."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
