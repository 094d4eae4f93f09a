// Package auth applies client credentials to outgoing HTTP requests.
//
// An Authenticator mutates a request just before it is sent: it sets an
// Authorization header, an API key header or query parameter, a signed JWT,
// or an OAuth2 access token obtained with the client credentials grant.
// Authenticators compose with Chain and can wrap any http.RoundTripper with
// NewTransport.
//
// Authenticators are created directly or by name from configuration maps
// through a Registry. DefaultRegistry knows the built-in strategies:
//
//	a, err := auth.DefaultRegistry.CreateAuthenticator("bearer", map[string]any{
//		"token": os.Getenv("API_TOKEN"),
//	})
//
// All authenticators are safe for concurrent use.
package auth
