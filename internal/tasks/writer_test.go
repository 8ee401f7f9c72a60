package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	th "github.com/upstreamhub/csv2spotify/internal/testing"
)

func selectionOf(n int) models.Selection {
	tracks := make([]models.ResolvedTrack, n)
	for i := range tracks {
		tracks[i] = models.ResolvedTrack{ID: fmt.Sprintf("%022d", i), Artist: fmt.Sprintf("artist %d", i)}
	}
	return models.Selection{
		Destination: models.Destination{Name: "one", ID: "pl1", MaxPerArtist: 3},
		Tracks:      tracks,
	}
}

func TestWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("Clear Then Append In Batches", func(t *testing.T) {
		svc := th.NewMockService()
		sel := selectionOf(250)

		result, err := NewWriter(svc, 100, nil).Write(ctx, sel, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Written != 250 || result.Batches != 3 || result.Selected != 250 {
			t.Errorf("unexpected result %+v", result)
		}

		if len(svc.Calls) != 4 || svc.Calls[0].Method != "clear" {
			t.Fatalf("expected clear followed by 3 appends, got %+v", svc.Calls)
		}

		var sent []string
		for i, c := range svc.CallsTo("add") {
			if c.PlaylistID != "pl1" {
				t.Errorf("batch %d sent to %s", i+1, c.PlaylistID)
			}
			sent = append(sent, c.URIs...)
		}
		for i, uri := range sel.URIs() {
			if sent[i] != uri {
				t.Fatalf("append order differs at %d: %s vs %s", i, sent[i], uri)
			}
		}
	})

	t.Run("Empty Selection Still Clears", func(t *testing.T) {
		svc := th.NewMockService()

		result, err := NewWriter(svc, 100, nil).Write(ctx, selectionOf(0), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(svc.CallsTo("clear")) != 1 || len(svc.CallsTo("add")) != 0 || result.Batches != 0 {
			t.Errorf("expected a single clear, got %+v", svc.Calls)
		}
	})

	t.Run("Failure Stops Remaining Batches", func(t *testing.T) {
		svc := th.NewMockService()
		svc.AddErrs = []error{nil, fmt.Errorf("%w: still limited", shared.ErrRateLimited)}

		result, err := NewWriter(svc, 100, nil).Write(ctx, selectionOf(300), nil)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if !errors.Is(result.Err, shared.ErrRateLimited) {
			t.Errorf("expected error on result, got %v", result.Err)
		}
		if n := len(svc.CallsTo("add")); n != 2 {
			t.Errorf("expected batch 3 never attempted, got %d appends", n)
		}
		if result.Written != 100 || result.Batches != 2 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("Clear Failure", func(t *testing.T) {
		svc := th.NewMockService()
		svc.ClearErr = shared.ErrPlaylistNotFound

		_, err := NewWriter(svc, 100, nil).Write(ctx, selectionOf(5), nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if n := len(svc.CallsTo("add")); n != 0 {
			t.Errorf("expected no appends after failed clear, got %d", n)
		}
	})

	t.Run("Batch Size Clamped", func(t *testing.T) {
		svc := th.NewMockService()
		if _, err := NewWriter(svc, 500, nil).Write(ctx, selectionOf(150), nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, c := range svc.CallsTo("add") {
			if len(c.URIs) > shared.MaxBatchSize {
				t.Errorf("batch of %d exceeds limit", len(c.URIs))
			}
		}
	})
}

func TestBatches(t *testing.T) {
	items := make([]string, 7)
	got := Batches(items, 3)
	if len(got) != 3 || len(got[0]) != 3 || len(got[2]) != 1 {
		t.Errorf("unexpected batches %v", got)
	}
	if Batches(nil, 3) != nil {
		t.Error("expected no batches for empty input")
	}
}
