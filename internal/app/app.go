package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/penaku/opn-admin/internal/apiclient"
	"github.com/penaku/opn-admin/internal/dashboard"
	"github.com/penaku/opn-admin/internal/proxy"
	"github.com/penaku/opn-admin/internal/tokensource"
	"github.com/penaku/opn-admin/internal/tokenstore"
)

// App wires the token store, backend clients and server-side helpers.
type App struct {
	cfg       *Config
	store     *tokenstore.Store
	auth      *tokensource.Authenticator
	dashboard *dashboard.Service
	proxy     *proxy.Proxy
}

// Option configures an App.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	store     *tokenstore.Store
}

// WithTransport sets the transport every backend call goes through.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithTokenStore replaces the store built from the storage configuration.
func WithTokenStore(store *tokenstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// New creates a new App instance.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = cfg.Storage.NewTokenStore(); err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
	}

	apiBaseURL := cfg.Backend.APIBaseURL()
	endpoint := tokensource.Endpoint(apiBaseURL)

	refresher := tokensource.NewRefresher(endpoint,
		tokensource.WithTransport(o.transport),
		tokensource.WithTimeout(cfg.Backend.RefreshTimeout),
	)

	client, err := apiclient.New(apiBaseURL, store,
		apiclient.WithBaseTransport(o.transport),
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithRefresher(refresher),
		apiclient.WithRefreshTimeout(cfg.Backend.RefreshTimeout),
		apiclient.WithAuthRequiredHandler(logAuthRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	uploads, err := apiclient.NewUploadClient(apiBaseURL, store,
		apiclient.WithBaseTransport(o.transport),
		apiclient.WithTimeout(cfg.Backend.UploadTimeout),
		apiclient.WithAuthRequiredHandler(logAuthRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload client: %w", err)
	}

	proxyServer, err := proxy.New(apiBaseURL,
		proxy.WithTransport(o.transport),
		proxy.WithUploadTimeout(cfg.Backend.UploadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:   cfg,
		store: store,
		auth: tokensource.NewAuthenticator(endpoint,
			tokensource.WithTransport(o.transport),
			tokensource.WithTimeout(cfg.Backend.Timeout),
		),
		dashboard: dashboard.New(client, uploads),
		proxy:     proxyServer,
	}, nil
}

// Dashboard returns the resource services.
func (a *App) Dashboard() *dashboard.Service {
	return a.dashboard
}

// Login exchanges username and password for credentials and stores them.
// Returns the path recorded when the previous session expired, if any.
func (a *App) Login(ctx context.Context, username, password string) (string, error) {
	token, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	a.store.SetCredentials(ctx, token.AccessToken, token.RefreshToken)
	if !a.store.IsAuthenticated(ctx) {
		return "", errors.New("login succeeded but credentials could not be stored")
	}

	returnPath, _ := a.store.TakeReturnPath(ctx)
	slog.InfoContext(ctx, "logged in", "user", username)
	return returnPath, nil
}

// Logout clears every stored credential.
func (a *App) Logout(ctx context.Context) {
	a.store.ClearCredentials(ctx)
}

// Status describes the stored session.
type Status struct {
	Authenticated   bool
	LoggedIn        bool
	HasRefreshToken bool
	// AccessToken is masked.
	AccessToken string
	IssuedAt    time.Time
}

// Status reports the stored session without contacting the backend.
func (a *App) Status(ctx context.Context) Status {
	creds := a.store.Credentials(ctx)
	status := Status{
		Authenticated:   a.store.IsAuthenticated(ctx),
		LoggedIn:        creds.LoggedIn,
		HasRefreshToken: creds.RefreshToken != "",
		IssuedAt:        creds.IssuedAt,
	}
	if creds.AccessToken != "" {
		status.AccessToken = tokenstore.Mask(creds.AccessToken)
	}
	return status
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting server", "address", address, "backend", a.cfg.Backend.APIBaseURL())
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// logAuthRequired reports an expired session. Credentials are already cleared.
func logAuthRequired(ctx context.Context, info apiclient.AuthRequired) {
	slog.WarnContext(ctx, "session expired, log in again",
		"reason", info.Reason,
		"return_path", info.ReturnPath,
	)
}
