package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packer/internal/config"
)

// InitCmd writes the default config document.
type InitCmd struct {
	Path   string `arg:"" optional:"" help:"Where to write the config" default:"packer.yaml" type:"path"`
	Format string `help:"Document format, derived from the file extension when empty" enum:",yaml,json" default:""`
	Force  bool   `help:"Overwrite an existing file" default:"false"`
}

func (c *InitCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	format := config.FormatFor(c.Path)
	if c.Format != "" {
		var err error
		if format, err = config.ParseFormat(c.Format); err != nil {
			return err
		}
	}

	if _, err := os.Stat(c.Path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", c.Path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", c.Path, err)
	}

	data, err := config.Marshal(config.Default(), format)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if err := renameio.WriteFile(c.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	log.Info().Str("path", c.Path).Str("format", string(format)).Msg("Wrote config")
	fmt.Fprintf(stdout, "Wrote %s\n", c.Path)
	return nil
}
