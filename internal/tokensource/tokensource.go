package tokensource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single login or refresh exchange.
const DefaultTimeout = 15 * time.Second

// ErrMissingRefreshToken is returned by Refresh when called without a refresh token.
var ErrMissingRefreshToken = errors.New("missing refresh token")

// Option configures an Authenticator or Refresher.
type Option func(*config)

// config holds configuration shared by NewAuthenticator and NewRefresher.
type config struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each token request. Defaults to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Authenticator performs the password login against the backend.
type Authenticator struct {
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// NewAuthenticator creates an Authenticator for the given endpoint.
func NewAuthenticator(endpoint oauth2.Endpoint, opts ...Option) *Authenticator {
	cfg := newConfig(opts)

	return &Authenticator{
		oauth2Config: &oauth2.Config{Endpoint: endpoint},
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
		},
	}
}

// Login exchanges username and password for a token pair.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	// oauth2 picks up custom HTTP clients via context (oauth2.HTTPClient key).
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.oauth2Config.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("password login: %w", err)
	}
	return token, nil
}

// Refresher exchanges refresh tokens for new access tokens.
type Refresher struct {
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// NewRefresher creates a Refresher posting to the refresh endpoint next to endpoint's token URL.
func NewRefresher(endpoint oauth2.Endpoint, opts ...Option) *Refresher {
	cfg := newConfig(opts)

	endpoint.TokenURL = refreshURL(endpoint)

	return &Refresher{
		oauth2Config: &oauth2.Config{Endpoint: endpoint},
		// Plain client: refresh requests must never pass through the injecting transport.
		httpClient: &http.Client{
			Timeout: cfg.timeout,
			Transport: &tokenRefreshTransport{
				base: cfg.baseTransport,
			},
		},
	}
}

// Refresh returns a new token pair. If the backend omits a new refresh token,
// the returned token keeps the one passed in.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	// An empty access token is never valid, so Token() always hits the endpoint.
	source := r.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return token, nil
}

// refreshRequest is the backend's refresh request body.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse accepts the backend's field names and the standard ones.
type refreshResponse struct {
	Token             string `json:"token"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refreshToken"`
	RefreshTokenSnake string `json:"refresh_token"`
	ExpiresIn         int64  `json:"expires_in,omitempty"`
}

// standardTokenResponse is what oauth2 expects from a token endpoint.
type standardTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// tokenRefreshTransport converts oauth2's form-encoded refresh requests to the
// backend's JSON format and translates successful responses back.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type tokenRefreshTransport struct {
	base http.RoundTripper
}

// Compile-time check that tokenRefreshTransport implements http.RoundTripper.
var _ http.RoundTripper = (*tokenRefreshTransport)(nil)

// RoundTrip rewrites the request body to JSON and the response body to standard token JSON.
func (t *tokenRefreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Defer close since we consume the body entirely and create a new body for the cloned request.
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	formData, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}

	jsonBody, err := json.Marshal(refreshRequest{RefreshToken: formData.Get("refresh_token")})
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON request: %w", err)
	}

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(bytes.NewReader(jsonBody))
	newReq.ContentLength = int64(len(jsonBody))
	newReq.Header.Set("Content-Type", "application/json")
	newReq.Header.Set("Accept", "application/json")

	resp, err := t.base.RoundTrip(newReq)
	if err != nil {
		return nil, err
	}

	// Error responses pass through untouched so oauth2 reports them as RetrieveError.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	return translateResponse(resp)
}

// translateResponse replaces the backend's {token, refreshToken} body with standard token JSON.
func translateResponse(resp *http.Response) (*http.Response, error) {
	original := resp.Body
	defer func() { _ = original.Close() }()
	raw, err := io.ReadAll(original)
	if err != nil {
		return nil, fmt.Errorf("reading refresh response: %w", err)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}

	standard := standardTokenResponse{
		AccessToken:  parsed.Token,
		TokenType:    "Bearer",
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
	}
	if standard.AccessToken == "" {
		standard.AccessToken = parsed.AccessToken
	}
	if standard.RefreshToken == "" {
		standard.RefreshToken = parsed.RefreshTokenSnake
	}

	translated, err := json.Marshal(standard)
	if err != nil {
		return nil, fmt.Errorf("marshaling token response: %w", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(translated))
	resp.ContentLength = int64(len(translated))
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Content-Length", strconv.Itoa(len(translated)))
	return resp, nil
}
