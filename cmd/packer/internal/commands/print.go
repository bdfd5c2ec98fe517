package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/packer/internal/config"
)

// PrintCmd prints the loaded config with defaults and overrides applied.
type PrintCmd struct {
	ConfigFlags `embed:""`
	ModeFlags   `embed:""`

	Format string `help:"Output format" enum:"yaml,json" default:"yaml"`
}

func (c *PrintCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	cfg, err := loadConfig(c.ConfigFlags, c.ModeFlags.apply)
	if err != nil {
		return err
	}

	format, err := config.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	data, err := config.Marshal(cfg, format)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	_, err = stdout.Write(data)
	return err
}
