// Package server provides the HTTP routing, middleware and OAuth callback handling used by the authorization helper.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// A temporary HTTP server is started on the redirect URI's host and port when `csv2spotify auth` runs and shut down
// once the token arrives or the two minute timeout passes.
package server
