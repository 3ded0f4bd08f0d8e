package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/penaku/opn-admin/internal/tokensource"
)

// DefaultRefreshTimeout bounds the shared refresh call, independent of any single caller.
const DefaultRefreshTimeout = 15 * time.Second

// RequestIDHeader identifies one logical request across its retry.
const RequestIDHeader = "X-Request-Id"

// maxErrorBody caps how much of an error response is kept in a StatusError.
const maxErrorBody = 64 << 10

// CredentialStore is the part of the token store the transport depends on.
type CredentialStore interface {
	AccessToken(ctx context.Context) (string, bool)
	RefreshToken(ctx context.Context) (string, bool)
	SetCredentials(ctx context.Context, accessToken, refreshToken string)
	ClearCredentials(ctx context.Context)
	SetReturnPath(ctx context.Context, path string)
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// AuthRequiredHandler is notified when a 401 ends the session.
type AuthRequiredHandler func(ctx context.Context, ev AuthRequired)

// Transport injects the stored bearer token and recovers from 401 responses
// by refreshing once and retrying once. A nil Refresher disables recovery:
// every 401 ends the session.
type Transport struct {
	Base           http.RoundTripper
	Store          CredentialStore
	Refresher      Refresher
	OnAuthRequired AuthRequiredHandler
	RefreshTimeout time.Duration

	group singleflight.Group
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip sends req, tagging it with a request ID shared by its retry.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	// Retries need the body again.
	if t.Refresher != nil && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffering request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	return t.roundTrip(req, 0)
}

// roundTrip performs one attempt. Only attempt 0 may trigger a refresh.
func (t *Transport) roundTrip(req *http.Request, attempt int) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	if attempt > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = body
	}

	authEndpoint := isAuthEndpoint(req.URL.Path)
	sent := ""
	if authEndpoint {
		out.Header.Del("Authorization")
	} else if bearer, ok := t.Store.AccessToken(ctx); ok {
		out.Header.Set("Authorization", bearer)
		sent = bearer
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || authEndpoint {
		return resp, nil
	}
	if attempt > 0 {
		slog.WarnContext(ctx, "request rejected after token refresh",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", req.Header.Get(RequestIDHeader),
		)
		return resp, nil
	}

	return t.handleUnauthorized(req, resp, sent)
}

// handleUnauthorized decides between retrying, refreshing and ending the session.
func (t *Transport) handleUnauthorized(req *http.Request, resp *http.Response, sent string) (*http.Response, error) {
	ctx := req.Context()

	if t.Refresher == nil {
		return nil, t.requireAuth(req, resp, ReasonUploadRejected)
	}

	refreshToken, ok := t.Store.RefreshToken(ctx)
	if !ok {
		return nil, t.requireAuth(req, resp, ReasonNoRefreshToken)
	}

	// A concurrent request already replaced the token this one was sent with.
	if current, ok := t.Store.AccessToken(ctx); ok && current != sent {
		discard(resp)
		return t.roundTrip(req, 1)
	}

	if err := t.refresh(ctx, refreshToken, sent); err != nil {
		if ctx.Err() != nil {
			discard(resp)
			return nil, ctx.Err()
		}
		slog.WarnContext(ctx, "token refresh failed", "error", err)
		return nil, t.requireAuth(req, resp, ReasonRefreshFailed)
	}

	discard(resp)
	return t.roundTrip(req, 1)
}

// refresh exchanges refreshToken and stores the new pair. Concurrent callers
// holding the same refresh token share one exchange. The exchange itself is
// detached from ctx; a caller that gives up only stops waiting for it.
func (t *Transport) refresh(ctx context.Context, refreshToken, sent string) error {
	ch := t.group.DoChan(refreshToken, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.refreshTimeout())
		defer cancel()

		// A flight that finished just before this one started already stored a new pair.
		if current, ok := t.Store.AccessToken(rctx); ok && current != sent {
			return nil, nil
		}

		token, err := t.Refresher.Refresh(rctx, refreshToken)
		if err != nil {
			return nil, err
		}
		t.Store.SetCredentials(rctx, token.AccessToken, token.RefreshToken)
		slog.InfoContext(rctx, "access token refreshed", "rotated", token.RefreshToken != refreshToken)
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// requireAuth ends the session and builds the error carrying the original 401.
func (t *Transport) requireAuth(req *http.Request, resp *http.Response, reason string) error {
	statusErr := newStatusError(req, resp)

	// The session ends even if the caller stops listening.
	ctx := context.WithoutCancel(req.Context())
	t.Store.ClearCredentials(ctx)

	// ReturnPath stays empty unless the caller set one
	ev := AuthRequired{
		ReturnPath: ReturnPathFrom(ctx),
		Reason:     reason,
	}
	t.Store.SetReturnPath(ctx, ev.ReturnPath)

	slog.WarnContext(ctx, "authentication required",
		"reason", reason,
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", req.Header.Get(RequestIDHeader),
	)

	if t.OnAuthRequired != nil {
		t.OnAuthRequired(ctx, ev)
	}

	return &AuthRequiredError{AuthRequired: ev, Err: statusErr}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) refreshTimeout() time.Duration {
	if t.RefreshTimeout > 0 {
		return t.RefreshTimeout
	}
	return DefaultRefreshTimeout
}

// isAuthEndpoint reports whether path is the login or refresh endpoint,
// which must never carry a bearer token.
func isAuthEndpoint(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return strings.HasSuffix(path, tokensource.LoginPath) || strings.HasSuffix(path, tokensource.RefreshPath)
}

// newStatusError consumes and closes resp's body.
func newStatusError(req *http.Request, resp *http.Response) *StatusError {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		Body:       body,
	}
}

// discard drains and closes a response that will not be returned.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
