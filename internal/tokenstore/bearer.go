package tokenstore

import "strings"

// BearerPrefix is prepended to raw tokens to form an Authorization header value.
const BearerPrefix = "Bearer "

// NormalizeBearer returns token with exactly one leading BearerPrefix.
// Applying it to its own output is a no-op.
func NormalizeBearer(token string) string {
	if token == "" || strings.HasPrefix(token, BearerPrefix) {
		return token
	}
	return BearerPrefix + token
}

// Mask hides a secret for logs and debug output, keeping the first 10 and last 5
// characters. Values of 15 characters or fewer are fully masked.
func Mask(value string) string {
	if len(value) <= 15 {
		return "***"
	}
	return value[:10] + "..." + value[len(value)-5:]
}
