package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/upstreamhub/csv2spotify/internal/server"
	"github.com/upstreamhub/csv2spotify/internal/services"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 authorization code flow and writes the resulting refresh token to the env file.
//
// Only meant to be run by hand: it needs a browser and refuses to start under CI.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if shared.IsCI(r.lookup) {
		return shared.ErrInteractiveInCI
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set", shared.ErrMissingCredentials)
	}

	provider := services.NewTokenProvider(creds, r.tokenOpts)
	token, err := r.doOAuth(ctx, provider)
	if err != nil {
		return err
	}

	if err := creds.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	envPath := cmd.String("env-file")
	if err := shared.MergeEnvFile(envPath, creds.Env()); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	if err := r.writePlainln("✓ Authorization successful"); err != nil {
		return err
	}
	return r.writePlain("✓ SPOTIFY_REFRESH_TOKEN saved to %s\n\nStore it as a secret for scheduled runs, then run: csv2spotify\n", envPath)
}

// doOAuth starts a local callback server, sends the user to the authorize page and waits for the token.
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	config := oauthSrv.GetOAuthConfig()
	listener, err := net.Listen("tcp", r.callbackAddr(config.RedirectURL))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	if redirect, ok := boundRedirect(config.RedirectURL, listener.Addr()); ok {
		config.RedirectURL = redirect
	}

	oauthHandler := server.NewOAuthHandler(config, state, r.tokenOpts.HTTPClient)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := oauthSrv.GetAuthURL(state)
	if err := r.writePlain("→ Opening browser for Spotify authorization...\n"); err != nil {
		return nil, err
	}
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		if err := r.writePlain("\n⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL); err != nil {
			return nil, err
		}
	}

	if err := r.writePlain("→ Waiting for authorization (%v timeout)...\n", r.authTimeout); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(r.authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, r.authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// callbackAddr is the listen address taken from the redirect URI, falling back to the server config.
func (r *Runner) callbackAddr(redirectURI string) string {
	if u, err := url.Parse(redirectURI); err == nil && u.Host != "" {
		if u.Port() == "" {
			return net.JoinHostPort(u.Hostname(), "80")
		}
		return u.Host
	}
	return net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
}

// boundRedirect replaces port 0 in the redirect URI with the port actually bound.
func boundRedirect(redirectURI string, addr net.Addr) (string, bool) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Port() != "0" {
		return "", false
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "", false
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(tcp.Port))
	return u.String(), true
}
