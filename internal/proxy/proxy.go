package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUploadTimeout bounds one proxied upload including the upstream response.
const DefaultUploadTimeout = 30 * time.Second

// Routes served by the proxy.
const (
	DebugHeadersRoute = "GET /api/v1/debug-headers"
	NewsPhotosRoute   = "POST /api/v1/uploads/news/{id}/photos"
)

// Proxy serves the server-side helpers: the debug-headers endpoint and the
// news photo upload proxy, which authenticates with the cookie mirror.
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*options)

type options struct {
	transport     http.RoundTripper
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// WithTransport sets the transport used to reach the backend.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithUploadTimeout overrides DefaultUploadTimeout.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.uploadTimeout = timeout
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Proxy forwarding uploads to apiBaseURL, e.g. "https://host/api/v1".
func New(apiBaseURL string, opts ...Option) (*Proxy, error) {
	upstream, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("backend URL must be absolute: %q", apiBaseURL)
	}
	upstream.Path = strings.TrimRight(upstream.Path, "/")

	o := options{
		transport:     http.DefaultTransport,
		uploadTimeout: DefaultUploadTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()

	mux.Handle(DebugHeadersRoute, applyMiddlewares(http.HandlerFunc(debugHeaders),
		Logging(o.logger),
		Recovery,
	))

	mux.Handle(NewsPhotosRoute, applyMiddlewares(newUploadProxy(upstream, o.transport, o.uploadTimeout),
		Logging(o.logger),
		Recovery,
	))

	return &Proxy{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  60 * time.Second, // Uploads carry multipart bodies
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
