package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const defaultRedirectURI = "http://127.0.0.1:8080/callback"

// Scopes requested by the authorization helper. Playlist writes need the modify scopes.
var Scopes = []string{
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
}

// TokenOpts contains optional settings for a [TokenProvider].
type TokenOpts struct {
	AuthURL    string       // defaults to the Spotify accounts authorize endpoint
	TokenURL   string       // defaults to the Spotify accounts token endpoint
	HTTPClient *http.Client // client used for the token exchange
	Logger     *log.Logger
}

// TokenProvider turns configured credentials into an access token source.
//
// A directly supplied access token is used as-is. Otherwise the refresh token is exchanged for an access token with
// the OAuth2 refresh grant, authenticating the client with HTTP basic auth.
type TokenProvider struct {
	config       *oauth2.Config
	accessToken  string
	refreshToken string
	httpClient   *http.Client
	logger       *log.Logger
}

// NewTokenProvider creates a TokenProvider for the given credentials.
func NewTokenProvider(creds shared.SpotifyConfig, opts TokenOpts) *TokenProvider {
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyauth.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	return &TokenProvider{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		accessToken:  creds.AccessToken,
		refreshToken: creds.RefreshToken,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
	}
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (p *TokenProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// GetOAuthConfig returns the underlying [oauth2.Config].
func (p *TokenProvider) GetOAuthConfig() *oauth2.Config {
	return p.config
}

// TokenSource returns a source of access tokens for the run.
//
// The refresh grant is performed eagerly so that a rejected refresh token fails the run before any other work.
func (p *TokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if p.accessToken != "" {
		p.logger.Info("using SPOTIFY_ACCESS_TOKEN provided in environment")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.accessToken, TokenType: "Bearer"}), nil
	}

	hasClient := p.config.ClientID != "" && p.config.ClientSecret != ""
	switch {
	case p.refreshToken != "" && hasClient:
	case hasClient:
		return nil, fmt.Errorf(
			"%w: client id and secret alone cannot modify playlists; run `csv2spotify auth` to obtain SPOTIFY_REFRESH_TOKEN or set SPOTIFY_ACCESS_TOKEN",
			shared.ErrMissingCredentials,
		)
	default:
		return nil, fmt.Errorf(
			"%w: set SPOTIFY_ACCESS_TOKEN, or SPOTIFY_REFRESH_TOKEN with SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET",
			shared.ErrMissingCredentials,
		)
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	p.logger.Info("requesting access token using refresh token")
	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, refreshError(err)
	}

	if token.RefreshToken != "" && token.RefreshToken != p.refreshToken {
		p.logger.Warn("token endpoint issued a new refresh token; update SPOTIFY_REFRESH_TOKEN before it is revoked")
	}

	return oauth2.ReuseTokenSource(token, &refreshableTokenSource{
		source: source,
		last:   token.AccessToken,
		callback: func(t *oauth2.Token) {
			p.logger.Debug("access token refreshed", "expiry", t.Expiry)
		},
	}), nil
}

func refreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return fmt.Errorf("%w: status %d: %s %s", shared.ErrRefreshFailed, status, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	}
	return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
}

// refreshableTokenSource reports every new access token it hands out.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, refreshError(err)
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if s.callback != nil {
			s.callback(token)
		}
	}
	return token, nil
}
