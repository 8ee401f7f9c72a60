package services

import (
	"context"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"golang.org/x/oauth2"
)

// Catalog looks tracks up in the streaming service's catalog.
type Catalog interface {
	// SearchTrack returns the top match for a title and optional artist.
	// Returns [shared.ErrTrackNotFound] when the search has no results.
	SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error)

	// Tracks looks up tracks by id. The result is index-aligned with ids; unknown ids yield nil entries.
	Tracks(ctx context.Context, ids []string) ([]*models.ResolvedTrack, error)
}

// PlaylistEditor mutates remote playlists.
type PlaylistEditor interface {
	// ClearPlaylist removes every item from a playlist.
	ClearPlaylist(ctx context.Context, playlistID string) error

	// AddTracks appends track URIs, in order, in a single request.
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// Service is a streaming service that can both resolve and write tracks.
type Service interface {
	Catalog
	PlaylistEditor

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService exposes the authorization code flow used by the interactive helper.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
}
