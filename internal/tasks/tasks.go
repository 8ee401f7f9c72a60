package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/services"
	"github.com/upstreamhub/csv2spotify/internal/shared"
)

// RowLoader reads CSV rows from a path or URL.
type RowLoader interface {
	Load(ctx context.Context, source string) ([]models.Row, error)
}

// EngineOpts configures a [PlaylistEngine].
type EngineOpts struct {
	Destinations []models.Destination
	Dedupe       bool
	Shuffle      bool
	DryRun       bool       // resolve and select without writing
	BatchSize    int        // tracks per append request
	SearchRate   float64    // catalog searches per second
	Rand         *rand.Rand // shuffle source, nil for the global one
	RunID        string
	Logger       *log.Logger
}

// PlaylistEngine runs the CSV → resolve → select → write pipeline.
type PlaylistEngine struct {
	loader   RowLoader
	resolver *Resolver
	writer   *Writer
	opts     EngineOpts
	logger   *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided dependencies.
func NewPlaylistEngine(loader RowLoader, svc services.Service, opts EngineOpts) *PlaylistEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		loader:   loader,
		resolver: NewResolver(svc, ResolverOpts{SearchRate: opts.SearchRate, Logger: opts.Logger}),
		writer:   NewWriter(svc, opts.BatchSize, opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one playlist update from source.
//
// The report is returned even when the run fails part way, so that callers can print what was done.
func (e *PlaylistEngine) Run(ctx context.Context, source string, progress chan<- ProgressUpdate) (*models.RunReport, error) {
	if len(e.opts.Destinations) == 0 {
		return nil, fmt.Errorf("%w: no destination playlists", shared.ErrInvalidConfig)
	}

	report := &models.RunReport{RunID: e.opts.RunID, Source: source, DryRun: e.opts.DryRun}

	sendProgress(progress, loadCSVUpdate(source, -1))
	rows, err := e.loader.Load(ctx, source)
	if err != nil {
		return report, err
	}
	report.Rows = len(rows)
	sendProgress(progress, loadCSVUpdate(source, len(rows)))
	e.logger.Info("loaded csv", "source", source, "rows", len(rows))

	tracks, unresolved, err := e.resolver.Resolve(ctx, rows, progress)
	if err != nil {
		return report, err
	}
	report.Resolved = len(tracks)
	report.Unresolved = unresolved

	if e.opts.Dedupe {
		tracks, report.Duplicates = Dedupe(tracks)
	}
	e.logger.Info("resolved tracks",
		"resolved", report.Resolved, "skipped", report.Skipped(), "duplicates", report.Duplicates)

	for i, dest := range e.opts.Destinations {
		sel := models.Selection{Destination: dest, Tracks: Select(tracks, dest.MaxPerArtist)}
		if e.opts.Shuffle {
			sel.Tracks = Shuffle(sel.Tracks, e.opts.Rand)
		}
		sendProgress(progress, selectUpdate(i+1, len(e.opts.Destinations), sel))

		if e.opts.DryRun {
			e.logger.Info("dry run, not writing", "playlist", dest.String(), "selected", len(sel.Tracks))
			report.Playlists = append(report.Playlists, models.PlaylistResult{Destination: dest, Selected: len(sel.Tracks)})
			continue
		}

		result, err := e.writer.Write(ctx, sel, progress)
		report.Playlists = append(report.Playlists, result)
		if err != nil {
			e.logger.Error("playlist update failed", "playlist", dest.String(), "error", err)
			return report, err
		}
	}

	return report, nil
}
