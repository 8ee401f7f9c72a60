package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes the built-in defaults to the config path so they can be edited.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	r.logger.Info("creating config file from template", "path", configPath)
	if err := shared.CreateConfigFile(configPath); err != nil {
		if errors.Is(err, shared.ErrConfigExists) {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		return err
	}

	return r.writePlain("✓ Config written to %s\nSet SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET, then run: csv2spotify auth\n", configPath)
}
