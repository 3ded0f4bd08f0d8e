package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds one logical request including its refresh and retry.
const DefaultTimeout = 15 * time.Second

// Option configures a Client or UploadClient.
type Option func(*options)

type options struct {
	timeout        time.Duration
	base           http.RoundTripper
	refresher      Refresher
	onAuthRequired AuthRequiredHandler
	refreshTimeout time.Duration
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithBaseTransport sets the transport that performs the actual HTTP exchange.
func WithBaseTransport(base http.RoundTripper) Option {
	return func(o *options) {
		o.base = base
	}
}

// WithRefresher enables refresh-and-retry on 401. Ignored by UploadClient.
func WithRefresher(r Refresher) Option {
	return func(o *options) {
		o.refresher = r
	}
}

// WithAuthRequiredHandler registers a callback for ended sessions.
func WithAuthRequiredHandler(h AuthRequiredHandler) Option {
	return func(o *options) {
		o.onAuthRequired = h
	}
}

// WithRefreshTimeout bounds the shared refresh exchange.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.refreshTimeout = timeout
	}
}

// requester is the request execution shared by Client and UploadClient.
type requester struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func newRequester(baseURL string, store CredentialStore, o options) (*requester, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}

	transport := &Transport{
		Base:           o.base,
		Store:          store,
		Refresher:      o.refresher,
		OnAuthRequired: o.onAuthRequired,
		RefreshTimeout: o.refreshTimeout,
	}

	return &requester{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: o.timeout,
		// No http.Client.Timeout: the per-request context deadline lets
		// cancellation and timeouts be told apart.
		httpClient: &http.Client{Transport: transport},
	}, nil
}

// url joins the base URL and path verbatim so trailing slashes survive.
func (r *requester) url(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// execute sends req and decodes a 2xx JSON body into out.
func (r *requester) execute(ctx context.Context, req *http.Request, out any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return classify(ctx, req, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(req, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			return classify(ctx, req, err)
		}
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// classify maps a failed exchange onto the error taxonomy.
func classify(ctx context.Context, req *http.Request, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var authErr *AuthRequiredError
	if errors.As(err, &authErr) {
		return authErr
	}
	var canceled *CanceledError
	if errors.As(err, &canceled) {
		return canceled
	}

	target := req.URL.Redacted()
	if errors.Is(ctx.Err(), context.Canceled) {
		return &CanceledError{Method: req.Method, URL: target, Err: ctx.Err()}
	}
	return &NetworkError{Method: req.Method, URL: target, Err: err}
}

// Client calls the backend's JSON API.
type Client struct {
	r *requester
}

// New creates a Client for baseURL, e.g. "https://host/api/v1".
func New(baseURL string, store CredentialStore, opts ...Option) (*Client, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := newRequester(baseURL, store, o)
	if err != nil {
		return nil, err
	}
	return &Client{r: r}, nil
}

// Do sends a JSON request and decodes the JSON response into out. body and
// out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.r.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.r.url(path, query), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.r.execute(ctx, req, out)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch sends a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}
