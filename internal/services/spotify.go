// Spotify Web API implementation of [Service]
//
// Catalog reads go through [spotify.Client]; playlist writes are issued directly so that rate limiting can be
// handled per request. See https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// MaxTracksPerLookup is the several-tracks endpoint limit.
	MaxTracksPerLookup = 50
)

// SpotifyOpts contains optional settings for a [SpotifyService].
type SpotifyOpts struct {
	BaseURL    string        // API root, defaults to https://api.spotify.com/v1
	HTTPClient *http.Client  // base client wrapped by the OAuth2 transport
	RetryAfter time.Duration // wait used when a 429 carries no Retry-After header
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *log.Logger
}

// SpotifyService implements [Service] for the Spotify Web API.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	catalog    *spotify.Client
	retryAfter time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *log.Logger
}

// NewSpotifyService creates a Spotify client that authenticates every request with tokens from ts.
func NewSpotifyService(ctx context.Context, ts oauth2.TokenSource, opts SpotifyOpts) (*SpotifyService, error) {
	if ts == nil {
		return nil, fmt.Errorf("%w: nil token source", shared.ErrNotAuthenticated)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 5 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	httpClient := oauth2.NewClient(ctx, ts)

	return &SpotifyService{
		baseURL:    baseURL,
		httpClient: httpClient,
		catalog:    spotify.New(httpClient, spotify.WithBaseURL(baseURL+"/")),
		retryAfter: opts.RetryAfter,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SearchTrack searches the catalog for a track by title and optional artist and returns the top match.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error) {
	query := SearchQuery(title, artist)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	result, err := s.catalog.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, catalogError("search", err)
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", shared.ErrTrackNotFound, query)
	}

	track := toResolved(&result.Tracks.Tracks[0])
	track.Source = models.SourceSearch
	return track, nil
}

// Tracks looks up to [MaxTracksPerLookup] tracks by id.
func (s *SpotifyService) Tracks(ctx context.Context, ids []string) ([]*models.ResolvedTrack, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxTracksPerLookup {
		return nil, fmt.Errorf("%w: maximum %d track IDs allowed", shared.ErrInvalidInput, MaxTracksPerLookup)
	}

	spotifyIDs := make([]spotify.ID, len(ids))
	for i, id := range ids {
		spotifyIDs[i] = spotify.ID(id)
	}

	full, err := s.catalog.GetTracks(ctx, spotifyIDs)
	if err != nil {
		return nil, catalogError("track lookup", err)
	}

	tracks := make([]*models.ResolvedTrack, len(ids))
	for i := range ids {
		if i < len(full) && full[i] != nil {
			tracks[i] = toResolved(full[i])
		}
	}
	return tracks, nil
}

// ClearPlaylist replaces the playlist's items with an empty list.
func (s *SpotifyService) ClearPlaylist(ctx context.Context, playlistID string) error {
	body := map[string][]string{"uris": {}}
	return s.doRequest(ctx, http.MethodPut, playlistItemsEndpoint(playlistID), body, nil)
}

// AddTracks appends up to [shared.MaxBatchSize] track URIs to the end of a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > shared.MaxBatchSize {
		return fmt.Errorf("%w: maximum %d tracks per request", shared.ErrInvalidInput, shared.MaxBatchSize)
	}

	var result struct {
		SnapshotID string `json:"snapshot_id"`
	}
	body := map[string][]string{"uris": uris}
	if err := s.doRequest(ctx, http.MethodPost, playlistItemsEndpoint(playlistID), body, &result); err != nil {
		return err
	}

	s.logger.Debug("tracks appended", "playlist", playlistID, "count", len(uris), "snapshot", result.SnapshotID)
	return nil
}

// doRequest performs an authenticated JSON request against the Spotify API.
//
// A 429 response is retried exactly once after the Retry-After interval.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := s.send(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header, s.retryAfter)
		resp.Body.Close()

		s.logger.Warnf("rate limited on %s %s, retrying once in %v", method, endpoint, wait)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}

		if resp, err = s.send(ctx, method, endpoint, payload); err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return fmt.Errorf("%w: %s %s still rate limited after retry", shared.ErrRateLimited, method, endpoint)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (s *SpotifyService) send(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", shared.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	return resp, nil
}

// SearchQuery builds a field-filtered catalog query.
func SearchQuery(title, artist string) string {
	var parts []string
	if t := strings.TrimSpace(title); t != "" {
		parts = append(parts, "track:"+t)
	}
	if a := strings.TrimSpace(artist); a != "" {
		parts = append(parts, "artist:"+a)
	}
	return strings.Join(parts, " ")
}

func playlistItemsEndpoint(playlistID string) string {
	return fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
}

func toResolved(t *spotify.FullTrack) *models.ResolvedTrack {
	track := &models.ResolvedTrack{
		ID:     string(t.ID),
		Title:  t.Name,
		Source: models.SourceIdentifier,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	return track
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// statusError maps a non-2xx write response to a shared error.
func statusError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	return classify(resp.StatusCode, msg)
}

func catalogError(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, classify(apiErr.Status, apiErr.Message))
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
}

func classify(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d: %s", shared.ErrTokenExpired, status, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAuthFailed, status, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d: %s", shared.ErrPlaylistNotFound, status, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", shared.ErrRateLimited, status, msg)
	default:
		return fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrAPIRequest, status, msg)
	}
}

// IsAuthError reports whether err means the credential was rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrAuthFailed)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
