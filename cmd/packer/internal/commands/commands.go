package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/logger"
)

type Globals struct {
	Debug   bool
	Version string
}

// stdout receives command output that is not logging.
var stdout io.Writer = os.Stdout

// ConfigFlags selects the config document.
type ConfigFlags struct {
	Config string `help:"Path to the config document (yaml or json)" short:"c" default:"packer.yaml" env:"PACKER_CONFIG" type:"path"`
}

// ModeFlags overrides the mode declared in the config document.
type ModeFlags struct {
	Mode string `help:"Override the build mode (development or production)" env:"PACKER_MODE"`
}

func (m ModeFlags) apply(cfg *config.Config) {
	if m.Mode != "" {
		cfg.Mode = config.Mode(m.Mode)
	}
}

func setupLogging(globals *Globals) {
	log.Logger = logger.Setup(globals.Debug)
}

func loadConfig(flags ConfigFlags, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(flags.Config, overrides...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, w := range config.Lint(cfg) {
		log.Warn().Str("config", flags.Config).Msg(w)
	}

	log.Debug().
		Str("config", flags.Config).
		Str("mode", string(cfg.Mode)).
		Int("rules", len(cfg.Rules)).
		Msg("Loaded config")

	return cfg, nil
}
