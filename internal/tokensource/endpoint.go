package tokensource

import (
	"strings"

	"golang.org/x/oauth2"
)

// Backend auth paths, relative to the API base URL.
const (
	LoginPath   = "/auth/token"
	RefreshPath = "/auth/refresh"
)

// Endpoint returns the OAuth2 endpoint for the API rooted at apiBaseURL
// (e.g. "https://backend.example/api/v1").
// The backend takes client parameters in the form body, never via basic auth.
func Endpoint(apiBaseURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		TokenURL:  strings.TrimSuffix(apiBaseURL, "/") + LoginPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// refreshURL derives the refresh endpoint from the login endpoint.
func refreshURL(endpoint oauth2.Endpoint) string {
	return strings.TrimSuffix(endpoint.TokenURL, LoginPath) + RefreshPath
}
