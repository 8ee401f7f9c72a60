package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"golang.org/x/oauth2"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*SpotifyService, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var waits []time.Duration
	svc, err := NewSpotifyService(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test_token", TokenType: "Bearer"}),
		SpotifyOpts{
			BaseURL:    srv.URL + "/v1",
			RetryAfter: 5 * time.Second,
			Sleep: func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			},
		})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, &waits
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Nil Token Source", func(t *testing.T) {
			_, err := NewSpotifyService(ctx, nil, SpotifyOpts{})
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("Name", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
			if svc.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", svc.Name())
			}
		})
	})

	t.Run("SearchTrack", func(t *testing.T) {
		t.Run("Top Match", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/search" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
					t.Errorf("expected bearer token, got %q", got)
				}
				q := r.URL.Query()
				if q.Get("q") != "track:Song artist:Band" {
					t.Errorf("unexpected query %q", q.Get("q"))
				}
				if q.Get("type") != "track" || q.Get("limit") != "1" {
					t.Errorf("unexpected search params %v", q)
				}
				w.Write([]byte(`{"tracks":{"items":[{"id":"4uLU6hMCjMI75M1A2tKUQC","name":"Song","artists":[{"name":"Band"}]}]}}`))
			})

			track, err := svc.SearchTrack(ctx, "Song", "Band")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if track.ID != "4uLU6hMCjMI75M1A2tKUQC" || track.Artist != "Band" {
				t.Errorf("unexpected track %+v", track)
			}
			if track.Source != models.SourceSearch {
				t.Errorf("expected search source, got %s", track.Source)
			}
		})

		t.Run("No Results", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"tracks":{"items":[]}}`))
			})

			_, err := svc.SearchTrack(ctx, "Nothing", "")
			if !errors.Is(err, shared.ErrTrackNotFound) {
				t.Errorf("expected ErrTrackNotFound, got %v", err)
			}
		})

		t.Run("Unauthorized", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
			})

			_, err := svc.SearchTrack(ctx, "Song", "Band")
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
			if !IsAuthError(err) {
				t.Error("expected auth error")
			}
		})

		t.Run("Empty Query", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			if _, err := svc.SearchTrack(ctx, " ", ""); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Tracks", func(t *testing.T) {
		t.Run("Index Aligned", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/tracks" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("ids"); got != "aaaaaaaaaaaaaaaaaaaaaa,bbbbbbbbbbbbbbbbbbbbbb" {
					t.Errorf("unexpected ids %q", got)
				}
				w.Write([]byte(`{"tracks":[{"id":"aaaaaaaaaaaaaaaaaaaaaa","name":"One","artists":[{"name":"First"},{"name":"Second"}]},null]}`))
			})

			tracks, err := svc.Tracks(ctx, []string{"aaaaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbbbb"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(tracks))
			}
			if tracks[0] == nil || tracks[0].Artist != "First" {
				t.Errorf("expected primary artist, got %+v", tracks[0])
			}
			if tracks[1] != nil {
				t.Errorf("expected nil for unknown id, got %+v", tracks[1])
			}
		})

		t.Run("Too Many IDs", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
			ids := make([]string, MaxTracksPerLookup+1)
			if _, err := svc.Tracks(ctx, ids); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("ClearPlaylist", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != "/v1/playlists/pl1/tracks" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string][]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if uris, ok := body["uris"]; !ok || len(uris) != 0 {
				t.Errorf("expected empty uris, got %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"snapshot_id":"s1"}`))
		})

		if err := svc.ClearPlaylist(ctx, "pl1"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("AddTracks", func(t *testing.T) {
		t.Run("Posts URIs In Order", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if got := r.Header.Get("User-Agent"); got != shared.UserAgent {
					t.Errorf("expected user agent, got %q", got)
				}
				var body map[string][]string
				json.NewDecoder(r.Body).Decode(&body)
				if strings.Join(body["uris"], ",") != "spotify:track:a,spotify:track:b" {
					t.Errorf("unexpected uris %v", body["uris"])
				}
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"snapshot_id":"s2"}`))
			})

			if err := svc.AddTracks(ctx, "pl1", []string{"spotify:track:a", "spotify:track:b"}); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("Batch Too Large", func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})
			uris := make([]string, shared.MaxBatchSize+1)
			if err := svc.AddTracks(ctx, "pl1", uris); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Retries Once After Rate Limit", func(t *testing.T) {
			calls := 0
			svc, waits := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.Header().Set("Retry-After", "2")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusCreated)
			})

			if err := svc.AddTracks(ctx, "pl1", []string{"spotify:track:a"}); err != nil {
				t.Fatalf("expected retry to succeed, got %v", err)
			}
			if calls != 2 {
				t.Errorf("expected 2 requests, got %d", calls)
			}
			if len(*waits) != 1 || (*waits)[0] != 2*time.Second {
				t.Errorf("expected a single 2s wait, got %v", *waits)
			}
		})

		t.Run("Default Wait Without Header", func(t *testing.T) {
			calls := 0
			svc, waits := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusCreated)
			})

			if err := svc.AddTracks(ctx, "pl1", []string{"spotify:track:a"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(*waits) != 1 || (*waits)[0] != 5*time.Second {
				t.Errorf("expected the 5s fallback, got %v", *waits)
			}
		})

		t.Run("Rate Limited Twice", func(t *testing.T) {
			calls := 0
			svc, waits := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
			})

			err := svc.AddTracks(ctx, "pl1", []string{"spotify:track:a"})
			if !errors.Is(err, shared.ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			if calls != 2 {
				t.Errorf("expected exactly one retry, got %d requests", calls)
			}
			if len(*waits) != 1 {
				t.Errorf("expected one wait, got %v", *waits)
			}
		})
	})

	t.Run("Status Mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			want   error
		}{
			{"Not Found", http.StatusNotFound, shared.ErrPlaylistNotFound},
			{"Unauthorized", http.StatusUnauthorized, shared.ErrTokenExpired},
			{"Forbidden", http.StatusForbidden, shared.ErrAuthFailed},
			{"Server Error", http.StatusInternalServerError, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":{"status":0,"message":"nope"}}`))
				})

				err := svc.ClearPlaylist(ctx, "missing")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if !strings.Contains(err.Error(), "nope") {
					t.Errorf("expected API message in error, got %v", err)
				}
			})
		}
	})

	t.Run("SearchQuery", func(t *testing.T) {
		tests := []struct {
			title, artist, want string
		}{
			{"Song", "Band", "track:Song artist:Band"},
			{" Song ", "", "track:Song"},
			{"", "Band", "artist:Band"},
			{"", "", ""},
		}
		for _, tt := range tests {
			if got := SearchQuery(tt.title, tt.artist); got != tt.want {
				t.Errorf("SearchQuery(%q, %q) = %q, want %q", tt.title, tt.artist, got, tt.want)
			}
		}
	})

	t.Run("Context Cancelled During Wait", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := sleepContext(cctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
