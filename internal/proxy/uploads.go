package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/penaku/opn-admin/internal/tokenstore"
)

const uploadFailedMessage = "Failed to upload news photos"

// UploadErrorResponse is returned when the backend rejects an upload.
type UploadErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// newUploadProxy forwards news photo uploads to the backend, authenticating
// with the caller's Authorization header or cookie mirror.
func newUploadProxy(upstream *url.URL, transport http.RoundTripper, timeout time.Duration) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.URL.Path = upstream.Path + "/uploads/news/" + pr.In.PathValue("id") + "/photos"
			pr.Out.URL.RawPath = ""
			pr.Out.Host = upstream.Host

			// Credentials travel as the bearer only; the mirror cookies stay local.
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Set("Authorization", uploadBearer(pr.In))
		},
		ModifyResponse: rewriteUploadResponse,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.ErrorContext(r.Context(), "news photo upload failed", "id", r.PathValue("id"), "error", err)
			writeJSONError(r.Context(), w, uploadFailedMessage, http.StatusInternalServerError)
		},
		Transport: transport,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if id, err := strconv.Atoi(r.PathValue("id")); err != nil || id <= 0 {
			writeJSONError(ctx, w, "Invalid news id", http.StatusBadRequest)
			return
		}
		if uploadBearer(r) == "" {
			writeJSONError(ctx, w, "Authentication required", http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		rp.ServeHTTP(w, r.WithContext(ctx))
	})
}

// uploadBearer is the Authorization header, else the first cookie of the
// mirror holding a token, in Bearer form.
func uploadBearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return tokenstore.NormalizeBearer(h)
	}
	for _, name := range []string{tokenstore.ServerTokenCookie, tokenstore.KeyAuthToken, tokenstore.KeyToken} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return tokenstore.NormalizeBearer(c.Value)
		}
	}
	return ""
}

// rewriteUploadResponse turns HTML pages and backend errors into JSON errors.
func rewriteUploadResponse(resp *http.Response) error {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		slog.ErrorContext(resp.Request.Context(), "backend answered upload with HTML", "status", resp.StatusCode)
		return replaceBody(resp, http.StatusNotFound, ErrorResponse{Error: "Invalid API endpoint or server error"})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var upstream struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&upstream)

		msg := upstream.Error
		if msg == "" {
			msg = uploadFailedMessage
		}
		return replaceBody(resp, resp.StatusCode, UploadErrorResponse{Error: msg, Status: resp.StatusCode})
	}

	return nil
}

// replaceBody swaps resp's body for v encoded as JSON.
func replaceBody(resp *http.Response, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding upload error: %w", err)
	}
	_ = resp.Body.Close()

	resp.StatusCode = status
	resp.Status = fmt.Sprintf("%d %s", status, http.StatusText(status))
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Del("Content-Encoding")
	return nil
}
