package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/services"
	"github.com/upstreamhub/csv2spotify/internal/shared"
)

// Writer replaces the contents of destination playlists.
type Writer struct {
	editor    services.PlaylistEditor
	batchSize int
	logger    *log.Logger
}

// NewWriter creates a Writer that appends at most batchSize tracks per request.
func NewWriter(editor services.PlaylistEditor, batchSize int, logger *log.Logger) *Writer {
	if batchSize <= 0 || batchSize > shared.MaxBatchSize {
		batchSize = shared.MaxBatchSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Writer{editor: editor, batchSize: batchSize, logger: logger}
}

// Write clears the destination and appends the selection in order.
//
// The first failed request stops the write; later batches are not attempted. The error is returned and also
// recorded on the result.
func (w *Writer) Write(ctx context.Context, sel models.Selection, progress chan<- ProgressUpdate) (models.PlaylistResult, error) {
	dest := sel.Destination
	result := models.PlaylistResult{Destination: dest, Selected: len(sel.Tracks)}

	sendProgress(progress, clearUpdate(dest))
	if err := w.editor.ClearPlaylist(ctx, dest.ID); err != nil {
		result.Err = fmt.Errorf("clear %s: %w", dest, err)
		return result, result.Err
	}
	w.logger.Info("cleared playlist", "playlist", dest.String())

	uris := sel.URIs()
	batches := Batches(uris, w.batchSize)
	for i, batch := range batches {
		sendProgress(progress, appendUpdate(i+1, len(batches), dest, len(batch)))

		result.Batches++
		if err := w.editor.AddTracks(ctx, dest.ID, batch); err != nil {
			sendProgress(progress, appendFailedUpdate(i+1, len(batches), dest, err))
			result.Err = fmt.Errorf("append batch %d/%d to %s: %w", i+1, len(batches), dest, err)
			return result, result.Err
		}
		result.Written += len(batch)
	}

	w.logger.Info("playlist updated", "playlist", dest.String(), "tracks", result.Written, "batches", result.Batches)
	return result, nil
}

// Batches splits items into consecutive chunks of at most size.
func Batches(items []string, size int) [][]string {
	if size <= 0 {
		size = shared.MaxBatchSize
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
