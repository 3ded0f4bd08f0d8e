package proxy

import (
	"net/http"
	"strings"

	"github.com/penaku/opn-admin/internal/tokenstore"
)

// DebugHeadersResponse shows what a request carried, with secrets masked.
type DebugHeadersResponse struct {
	Message      string            `json:"message"`
	Headers      map[string]string `json:"headers"`
	Cookies      map[string]string `json:"cookies"`
	AuthToken    *string           `json:"authToken"`
	HasAuthToken bool              `json:"hasAuthToken"`
}

// maskedCookies hold credentials and never appear in clear.
var maskedCookies = map[string]bool{
	tokenstore.KeyToken:          true,
	tokenstore.KeyAuthToken:      true,
	tokenstore.KeyRefreshToken:   true,
	tokenstore.ServerTokenCookie: true,
}

// debugHeaders reports the request's headers and cookies and the bearer
// token a backend call made on its behalf would use.
func debugHeaders(w http.ResponseWriter, r *http.Request) {
	resp := DebugHeadersResponse{
		Message: "Debug Headers Information",
		Headers: make(map[string]string, len(r.Header)+1),
		Cookies: map[string]string{},
	}

	if r.Host != "" {
		resp.Headers["host"] = r.Host
	}
	for name, values := range r.Header {
		key := strings.ToLower(name)
		value := strings.Join(values, ", ")
		switch key {
		case "authorization", "cookie":
			if value != "" {
				value = tokenstore.Mask(value)
			}
		}
		resp.Headers[key] = value
	}

	for _, c := range r.Cookies() {
		value := c.Value
		if maskedCookies[c.Name] && value != "" {
			value = tokenstore.Mask(value)
		}
		resp.Cookies[c.Name] = value
	}

	if token := debugAuthToken(r); token != "" {
		masked := tokenstore.Mask(token)
		resp.AuthToken = &masked
		resp.HasAuthToken = true
	}

	writeJSON(r.Context(), w, resp, http.StatusOK)
}

// debugAuthToken is the Authorization header as sent, else the token or
// auth_token cookie in Bearer form.
func debugAuthToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	for _, name := range []string{tokenstore.KeyToken, tokenstore.KeyAuthToken} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return tokenstore.NormalizeBearer(c.Value)
		}
	}
	return ""
}
