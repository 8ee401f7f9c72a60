package tasks

import (
	"fmt"

	"github.com/upstreamhub/csv2spotify/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadCSV Phase = iota
	ResolveTracks
	EnrichArtists
	SelectTracks
	ClearPlaylist
	AppendTracks
)

func (p Phase) String() string {
	switch p {
	case LoadCSV:
		return "load_csv"
	case ResolveTracks:
		return "resolve_tracks"
	case EnrichArtists:
		return "enrich_artists"
	case SelectTracks:
		return "select_tracks"
	case ClearPlaylist:
		return "clear_playlist"
	case AppendTracks:
		return "append_tracks"
	default:
		return ""
	}
}

func loadCSVUpdate(source string, rows int) ProgressUpdate {
	if rows < 0 {
		return ProgressUpdate{Phase: LoadCSV, Step: 0, Total: 1, Message: fmt.Sprintf("Loading %s...", source)}
	}
	return ProgressUpdate{
		Phase:   LoadCSV,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d rows from %s", rows, source),
	}
}

func resolveUpdate(step, total int, row models.Row) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] line %d", step, total, row.Line),
		Data:    row,
	}
}

func enrichUpdate(step, total, ids int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking up %d tracks...", step, total, ids),
	}
}

func selectUpdate(step, total int, sel models.Selection) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s: %d tracks selected (max %d per artist)", sel.Destination, len(sel.Tracks), sel.Destination.MaxPerArtist),
		Data:    sel,
	}
}

func clearUpdate(dest models.Destination) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClearPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Clearing %s...", dest),
	}
}

func appendUpdate(step, total int, dest models.Destination, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AppendTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Appending %d tracks to %s", step, total, count, dest),
	}
}

func appendFailedUpdate(step, total int, dest models.Destination, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AppendTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, dest, err),
	}
}
