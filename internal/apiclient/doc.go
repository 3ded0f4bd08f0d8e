// Package apiclient talks to the admin backend on behalf of a logged-in user.
//
// Every request goes through Transport, which injects the stored bearer token
// and handles 401 responses: the refresh token is exchanged once for a new
// pair and the request is retried exactly once. When no refresh is possible
// the stored credentials are cleared and the caller receives an
// *AuthRequiredError wrapping the original 401.
//
// Errors are typed so callers can tell apart cancellation (*CanceledError),
// an ended session (*AuthRequiredError), backend rejections (*StatusError)
// and transport failures (*NetworkError).
package apiclient
