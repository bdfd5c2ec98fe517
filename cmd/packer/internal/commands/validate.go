package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/packer/internal/config"
	"github.com/wolfeidau/packer/internal/loaders"
	"github.com/wolfeidau/packer/internal/rules"
)

// ValidateCmd checks a config document without building.
type ValidateCmd struct {
	ConfigFlags `embed:""`

	Strict bool `help:"Treat rule overlap warnings as errors" default:"false"`
}

func (c *ValidateCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	cfg, err := loadConfig(c.ConfigFlags)
	if err != nil {
		return err
	}

	// binds every step name, which Load alone does not check
	table, err := rules.Compile(cfg.Rules, loaders.NewRegistry())
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	for _, r := range table.Rules() {
		fmt.Fprintf(stdout, "%s: %s\n", r, strings.Join(r.ApplicationOrder(), " -> "))
	}

	// loadConfig already logged these
	if c.Strict {
		if warnings := config.Lint(cfg); len(warnings) > 0 {
			return fmt.Errorf("%d rule overlap warning(s)", len(warnings))
		}
	}

	fmt.Fprintf(stdout, "%s is valid\n", c.Config)
	return nil
}
