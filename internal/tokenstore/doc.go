// Package tokenstore keeps the session's credentials (access token, refresh
// token, logged-in flag) consistent across several storage mediums.
//
// A Store writes every credential to an ordered list of key/value backends
// and mirrors them into a cookie jar so server-side handlers that only see
// cookies can authenticate too. Supported backends:
//   - File: JSON map on disk with atomic writes and 0600 permissions (durable)
//   - Keyring: OS-native credential storage (durable)
//   - Env: read-only environment variables, for pre-provisioned tokens
//   - Memory: process lifetime only (per-session, and the fake used in tests)
//   - CookieJar: cookie semantics with per-cookie expiry (mirror)
//
// Reads go durable → session → cookie mirror; the first non-empty value wins.
// Storage failures never surface to callers: they are logged and the read
// degrades to "no credential".
package tokenstore
