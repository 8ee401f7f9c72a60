package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/upstreamhub/csv2spotify/internal/formatter"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/upstreamhub/csv2spotify/internal/tasks"
	"github.com/upstreamhub/csv2spotify/internal/ui"
	"github.com/urfave/cli/v3"
)

// Update loads the CSV, resolves tracks and replaces every configured playlist.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", shared.ErrInvalidArgument, cmd.Args().First())
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("report-format"))
	if err != nil {
		return err
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(r.logger, "run_id", runID)
	dryRun := cmd.Bool("dry-run")

	svc, err := r.spotifyService(ctx, logger)
	if err != nil {
		return err
	}

	engine := tasks.NewPlaylistEngine(r.rowLoader(logger), svc, tasks.EngineOpts{
		Destinations: destinations(r.config),
		Dedupe:       r.config.Selection.Dedupe,
		Shuffle:      r.config.Selection.Shuffle,
		DryRun:       dryRun,
		BatchSize:    r.config.Writer.Size(),
		SearchRate:   r.config.Resolver.SearchRate,
		RunID:        runID,
		Logger:       logger,
	})

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			logger.Debug(ui.RenderProgress(ui.Plain(), update), "phase", update.Phase)
		}
	}()

	report, runErr := engine.Run(ctx, r.config.CSV.Path, progress)
	close(progress)
	wg.Wait()

	if report != nil {
		logger.Info("run complete",
			"resolved", report.Resolved,
			"skipped", report.Skipped(),
			"duplicates", report.Duplicates,
			"playlists", len(report.Playlists),
		)
		for _, p := range report.Playlists {
			logger.Info("playlist", "destination", p.Destination.String(), "selected", p.Selected, "written", p.Written)
		}

		if path := cmd.String("report"); path != "" {
			if err := formatter.WriteReport(report, path, format); err != nil {
				logger.Warn("failed to write report", "path", path, "error", err)
			} else {
				logger.Info("report written", "path", path, "format", format)
			}
		}
	}

	if err := r.writePlain("%s", ui.RenderSummary(r.painter, report, runErr)); err != nil {
		return err
	}
	return runErr
}

func destinations(config *shared.Config) []models.Destination {
	out := make([]models.Destination, 0, len(config.Playlists))
	for _, p := range config.Playlists {
		out = append(out, models.Destination{Name: p.Name, ID: p.ID, MaxPerArtist: p.MaxPerArtist})
	}
	return out
}
