// Package tokensource obtains and refreshes access tokens from the dashboard backend.
//
// The backend's auth endpoints only partly follow OAuth2:
//   - Login (POST /auth/token) is a standard password grant with a form-encoded body
//   - Refresh (POST /auth/refresh) takes a JSON body {"refreshToken": ...} and answers
//     {"token": ..., "refreshToken": ...} instead of the standard token response
//
// Both flows go through golang.org/x/oauth2; refresh requests pass through a transport
// that translates between the two wire formats.
//
// # Login
//
//	auth := tokensource.NewAuthenticator(tokensource.Endpoint(apiBaseURL))
//	token, err := auth.Login(ctx, username, password)
//
// # Refresh
//
//	r := tokensource.NewRefresher(tokensource.Endpoint(apiBaseURL))
//	token, err := r.Refresh(ctx, refreshToken)
//
// # Custom Base Transport
//
// Configure a custom base transport (e.g., for proxies or tests):
//
//	r := tokensource.NewRefresher(endpoint, tokensource.WithTransport(customTransport))
package tokensource
