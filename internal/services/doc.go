// Package services talks to the Spotify Web API.
//
// # Interfaces
//
// The pipeline depends on [Catalog] for track lookups and [PlaylistEditor] for writes. [Service] combines both and is
// implemented by [SpotifyService]; tests substitute mocks from internal/testing.
//
// # Tokens
//
// [TokenProvider] turns configured credentials into an [oauth2.TokenSource]:
//   - SPOTIFY_ACCESS_TOKEN is used unmodified, the token endpoint is never called
//   - otherwise the refresh token is exchanged with the refresh grant using HTTP basic client auth
//   - client id and secret alone are rejected since client credentials cannot edit user playlists
//
// The run path never persists tokens. A rotated refresh token is only reported in the log.
//
// # Spotify Implementation
//
// Catalog reads (search, several tracks) use the github.com/zmb3/spotify/v2 client over the OAuth2 http.Client.
// Playlist writes are plain JSON requests so a 429 can be retried exactly once after its Retry-After interval.
//
// # Error Handling
//
// Responses are mapped onto errors from the shared package:
//   - [shared.ErrTokenExpired] : 401
//   - [shared.ErrAuthFailed] : 403
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrRateLimited] : 429 that persisted through the retry
//   - [shared.ErrAPIRequest] : anything else
package services
