package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	th "github.com/upstreamhub/csv2spotify/internal/testing"
)

var (
	idA = strings.Repeat("a", 22)
	idB = strings.Repeat("b", 22)
	idC = strings.Repeat("c", 22)
)

func TestParseTrackID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{"URI", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"URL", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"URL With Query", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"Localized URL", "https://open.spotify.com/intl-ja/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"Album URL", "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC", "", false},
		{"Short ID", "spotify:track:abc", "", false},
		{"Bare ID", "4uLU6hMCjMI75M1A2tKUQC", "", false},
		{"Empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTrackID(tt.value)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseTrackID(%q) = %q, %v; want %q, %v", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name string
		row  models.Row
		want string
		ok   bool
	}{
		{"URI Column", th.NewRow(1, "spotify_uri", "spotify:track:"+idA), idA, true},
		{"URL Column", th.NewRow(1, "url", "https://open.spotify.com/track/"+idA), idA, true},
		{"ID Column", th.NewRow(1, "id", idA), idA, true},
		{"Track ID Column", th.NewRow(1, "track_id", idA), idA, true},
		{"Bare ID In Spotify URI Column", th.NewRow(1, "spotify_uri", idA), idA, true},
		{"Bare ID In URI Column", th.NewRow(1, "uri", idA), idA, true},
		{"Bare ID In Track URI Column", th.NewRow(1, "track_uri", idA), idA, true},
		{"Bare ID In Spotify URL Column", th.NewRow(1, "spotify_url", idA), idA, true},
		{"Bare ID In URL Column", th.NewRow(1, "url", idA), idA, true},
		{"Bare ID In Track URL Column", th.NewRow(1, "track_url", idA), idA, true},
		{"Bare ID In Other Column", th.NewRow(1, "notes", idA), "", false},
		{"Localized Header", th.NewRow(1, "リンク", "https://open.spotify.com/track/"+idB), idB, true},
		{"URI Before ID", th.NewRow(1, "id", idA, "uri", "spotify:track:"+idB), idB, true},
		{"Title Is Not An ID", th.NewRow(1, "title", idA), "", false},
		{"Malformed ID", th.NewRow(1, "id", "not-an-id"), "", false},
		{"Empty", th.NewRow(1), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractID(tt.row)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractID() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Identifier Rows Never Search", func(t *testing.T) {
		svc := th.NewMockService()
		svc.Catalog[idA] = &models.ResolvedTrack{ID: idA, Title: "One", Artist: "Catalog Artist"}
		svc.Catalog[idB] = &models.ResolvedTrack{ID: idB, Title: "Two", Artist: "Other"}

		rows := []models.Row{
			th.NewRow(1, "id", idA, "title", "One", "artist", "Sheet Artist"),
			th.NewRow(2, "url", "https://open.spotify.com/track/"+idB),
		}

		tracks, unresolved, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, rows, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(unresolved) != 0 {
			t.Errorf("expected no unresolved rows, got %v", unresolved)
		}
		if n := len(svc.CallsTo("search")); n != 0 {
			t.Errorf("expected no search calls, got %d", n)
		}
		if len(tracks) != 2 || tracks[0].ID != idA || tracks[1].ID != idB {
			t.Fatalf("unexpected tracks %+v", tracks)
		}
		if tracks[0].Artist != "Catalog Artist" {
			t.Errorf("expected catalog artist, got %q", tracks[0].Artist)
		}
		if tracks[0].Source != models.SourceIdentifier {
			t.Errorf("expected identifier source, got %s", tracks[0].Source)
		}
	})

	t.Run("Bare IDs In Link Columns Never Search", func(t *testing.T) {
		for _, col := range append(append([]string{}, URIColumns...), URLColumns...) {
			t.Run(col, func(t *testing.T) {
				svc := th.NewMockService()
				svc.Catalog[idA] = &models.ResolvedTrack{ID: idA, Title: "Song", Artist: "A"}

				rows := []models.Row{th.NewRow(1, col, idA, "title", "Song", "artist", "A")}
				tracks, unresolved, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, rows, nil)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if n := len(svc.CallsTo("search")); n != 0 {
					t.Errorf("expected no search calls, got %d", n)
				}
				if len(unresolved) != 0 || len(tracks) != 1 || tracks[0].ID != idA {
					t.Errorf("expected %s resolved by id, got %+v / %v", idA, tracks, unresolved)
				}
			})
		}
	})

	t.Run("Search Fallback", func(t *testing.T) {
		svc := th.NewMockService()
		svc.SearchResults[th.SearchKey("Song", "Band")] = &models.ResolvedTrack{ID: idC, Title: "Song", Artist: "Band"}
		svc.SearchResults[th.SearchKey("Named", "")] = &models.ResolvedTrack{ID: idB, Title: "Named", Artist: "Someone"}

		rows := []models.Row{
			th.NewRow(1, "title", "Song", "artist", "Band"),
			th.NewRow(2, "name", "Named"),
		}

		tracks, _, err := NewResolver(svc, ResolverOpts{SearchRate: 1000}).Resolve(ctx, rows, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != idC || tracks[0].Line != 1 || tracks[0].Source != models.SourceSearch {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[1].Artist != "Someone" {
			t.Errorf("expected artist from search result, got %q", tracks[1].Artist)
		}
		if n := len(svc.CallsTo("tracks")); n != 0 {
			t.Errorf("expected no artist lookup for searched tracks, got %d", n)
		}
	})

	t.Run("Unresolvable Rows Are Skipped", func(t *testing.T) {
		svc := th.NewMockService()
		svc.Catalog[idA] = &models.ResolvedTrack{ID: idA, Artist: "A"}

		rows := []models.Row{
			th.NewRow(1, "artist", "No Title"),
			th.NewRow(2, "title", "Missing", "artist", "Nobody"),
			th.NewRow(3, "id", idA),
			th.NewRow(4, "id", idB),
		}

		tracks, unresolved, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, rows, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != idA {
			t.Errorf("expected only line 3 to resolve, got %+v", tracks)
		}
		if len(unresolved) != 3 {
			t.Fatalf("expected 3 unresolved rows, got %v", unresolved)
		}
		for i, line := range []int{1, 2, 4} {
			if unresolved[i].Line != line {
				t.Errorf("expected unresolved line %d, got %d", line, unresolved[i].Line)
			}
		}
		if unresolved[2].Row.Get("id") != idB {
			t.Errorf("expected original row on catalog miss, got %+v", unresolved[2].Row)
		}
	})

	t.Run("Auth Failure Is Fatal", func(t *testing.T) {
		svc := th.NewMockService()
		svc.SearchErr = shared.ErrTokenExpired

		_, _, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, []models.Row{th.NewRow(1, "title", "Song")}, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("Other Search Errors Skip The Row", func(t *testing.T) {
		svc := th.NewMockService()
		svc.SearchErr = shared.ErrAPIRequest

		tracks, unresolved, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, []models.Row{th.NewRow(1, "title", "Song")}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 0 || len(unresolved) != 1 {
			t.Errorf("expected row to be skipped, got %v / %v", tracks, unresolved)
		}
	})

	t.Run("Artist Lookup Failure Is Fatal", func(t *testing.T) {
		svc := th.NewMockService()
		svc.TracksErr = shared.ErrAPIRequest

		_, _, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, []models.Row{th.NewRow(1, "id", idA)}, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Artist Lookup Batches", func(t *testing.T) {
		svc := th.NewMockService()
		var rows []models.Row
		for i := range 120 {
			id := strings.Repeat(string(rune('A'+i%26)), 11) + strings.Repeat(string(rune('a'+i/26)), 11)
			svc.Catalog[id] = &models.ResolvedTrack{ID: id, Artist: "X"}
			rows = append(rows, th.NewRow(i+1, "id", id))
		}

		tracks, _, err := NewResolver(svc, ResolverOpts{}).Resolve(ctx, rows, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 120 {
			t.Errorf("expected 120 tracks, got %d", len(tracks))
		}

		calls := svc.CallsTo("tracks")
		if len(calls) != 3 {
			t.Fatalf("expected 3 lookups, got %d", len(calls))
		}
		for i, want := range []int{50, 50, 20} {
			if len(calls[i].IDs) != want {
				t.Errorf("lookup %d: expected %d ids, got %d", i+1, want, len(calls[i].IDs))
			}
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		svc := th.NewMockService()
		_, _, err := NewResolver(svc, ResolverOpts{SearchRate: 1}).Resolve(cctx, []models.Row{th.NewRow(1, "title", "Song")}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
