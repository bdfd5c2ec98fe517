package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packer/internal/assets"
	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/devserver"
)

// ServeCmd runs the dev server.
type ServeCmd struct {
	ConfigFlags `embed:""`
	ModeFlags   `embed:""`

	Port    int    `help:"Override the dev server port" env:"PACKER_PORT"`
	Host    string `help:"Override the dev server host" env:"PACKER_HOST"`
	NoOpen  bool   `help:"Do not open a browser" default:"false"`
	NoWatch bool   `help:"Do not rebuild when sources change" default:"false"`
	Write   bool   `help:"Also write each build to the output directory" default:"false"`
	Lessc   string `help:"lessc executable used by less-loader" env:"PACKER_LESSC"`
}

func (c *ServeCmd) overrides(cfg *config.Config) {
	c.ModeFlags.apply(cfg)
	if c.Port != 0 {
		cfg.DevServer.Port = c.Port
	}
	if c.Host != "" {
		cfg.DevServer.Host = c.Host
	}
	if c.NoOpen {
		cfg.DevServer.AutoOpenBrowser = false
	}
	if c.NoWatch {
		watch := false
		cfg.DevServer.Watch = &watch
	}
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	cfg, err := loadConfig(c.ConfigFlags, c.overrides)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.Config{Lessc: c.Lessc})
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	opts := []devserver.Option{devserver.WithLogger(log.Logger)}
	if c.Write {
		opts = append(opts, devserver.WithWriteTo(cfg.OutputDir()))
	}

	log.Info().Str("version", globals.Version).Str("addr", cfg.DevServer.Addr()).Msg("Starting dev server")

	return devserver.New(cfg, pipeline, opts...).Run(ctx)
}
