package ui

import (
	"fmt"
	"strings"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/tasks"
)

// Default returns the colored palette used on terminals.
func Default() *Palette {
	return styles
}

// RenderProgress formats one progress update as a single status line.
func RenderProgress(p Painter, update tasks.ProgressUpdate) string {
	var phase string
	switch update.Phase {
	case tasks.LoadCSV:
		phase = "load"
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("resolve %d/%d", update.Step, update.Total)
	case tasks.EnrichArtists:
		phase = "artists"
	case tasks.SelectTracks:
		phase = "select"
	case tasks.ClearPlaylist:
		phase = "clear"
	case tasks.AppendTracks:
		phase = "append"
	default:
		phase = "..."
	}
	return fmt.Sprintf("%s %s", p.Help(fmt.Sprintf("[%s]", phase)), update.Message)
}

// RenderSummary renders the end-of-run summary shown on the terminal.
func RenderSummary(p Painter, report *models.RunReport, runErr error) string {
	var b strings.Builder

	switch {
	case runErr != nil:
		b.WriteString(p.Err("✗ Playlist update failed"))
	case report != nil && report.DryRun:
		b.WriteString(p.Title("Dry run complete, playlists untouched"))
	default:
		b.WriteString(p.OK("✓ Playlists updated"))
	}
	b.WriteString("\n")

	if report == nil {
		if runErr != nil {
			fmt.Fprintf(&b, "\n%v\n", runErr)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "\nSource: %s\nRows: %d  Resolved: %d  Skipped: %d  Duplicates: %d\n",
		report.Source, report.Rows, report.Resolved, report.Skipped(), report.Duplicates)

	for _, pl := range report.Playlists {
		switch {
		case pl.Err != nil:
			fmt.Fprintf(&b, "  %s %s: %d/%d written\n", p.Err("✗"), pl.Destination, pl.Written, pl.Selected)
		case report.DryRun:
			fmt.Fprintf(&b, "  • %s: %d selected\n", pl.Destination, pl.Selected)
		default:
			fmt.Fprintf(&b, "  %s %s: %d tracks\n", p.OK("✓"), pl.Destination, pl.Written)
		}
	}

	if n := report.Skipped(); n > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.Warn(fmt.Sprintf("Skipped %d rows:", n)))
		for _, u := range report.Unresolved {
			fmt.Fprintf(&b, "  • %s\n", u)
		}
	}

	if runErr != nil {
		fmt.Fprintf(&b, "\n%s\n", p.Err(runErr.Error()))
	}

	return b.String()
}
