package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packer/internal/assets"
)

// BuildCmd bundles the project and writes the output directory.
type BuildCmd struct {
	ConfigFlags `embed:""`
	ModeFlags   `embed:""`

	Lessc string `help:"lessc executable used by less-loader" env:"PACKER_LESSC"`
	Clean bool   `help:"Remove the output directory before writing" default:"false"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	cfg, err := loadConfig(c.ConfigFlags, c.ModeFlags.apply)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.Config{Lessc: c.Lessc})
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	res, err := pipeline.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	if c.Clean {
		log.Info().Str("dir", cfg.OutputDir()).Msg("Cleaning output directory")
		if err := os.RemoveAll(cfg.OutputDir()); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
	}

	if err := assets.WriteResult(ctx, res, cfg.OutputDir()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	for _, name := range res.Paths() {
		fmt.Fprintf(stdout, "%-40s %8d\n", name, len(res.Files[name]))
	}
	return nil
}
