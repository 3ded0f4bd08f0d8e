package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Storage keys shared by every medium.
const (
	KeyToken        = "token"
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refreshToken"
	KeyLoggedIn     = "is_logged_in"
	KeyIssuedAt     = "issued_at"
	KeyReturnPath   = "redirectAfterLogin"

	// ServerTokenCookie mirrors the Bearer-prefixed access token for server-side handlers.
	ServerTokenCookie = "auth_token_for_server"
)

// Cookie lifetimes.
const (
	CredentialCookieTTL  = 30 * 24 * time.Hour
	ServerTokenCookieTTL = time.Hour
)

// DefaultLoginPath is never recorded as a return path.
const DefaultLoginPath = "/login"

// minTokenLength is the shortest raw token treated as a real credential.
const minTokenLength = 10

// credentialKeys are removed from every medium on clear.
var credentialKeys = []string{KeyToken, KeyAuthToken, KeyRefreshToken, KeyLoggedIn, KeyIssuedAt}

// Medium is a named storage backend taking part in the store.
type Medium struct {
	Name    string
	Backend Backend
}

// Credentials is a point-in-time view of the stored session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	LoggedIn     bool
	IssuedAt     time.Time
}

// Store is the single source of truth for session credentials.
// Each public method holds the store lock for its whole duration, so mediums
// are never observed half-written.
type Store struct {
	mu        sync.Mutex
	mediums   []Medium
	cookies   ExpiringBackend
	seed      Backend
	loginPath string
	now       func() time.Time

	// stale holds the mediums that rejected the latest write or clear.
	// They are skipped on reads until a write to them succeeds again.
	stale map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithMedium appends a storage medium. Mediums are read in the order they are added,
// so the durable medium goes first.
func WithMedium(name string, backend Backend) Option {
	return func(s *Store) {
		s.mediums = append(s.mediums, Medium{Name: name, Backend: backend})
	}
}

// WithCookieMirror sets the cookie medium, read last and written with explicit lifetimes.
func WithCookieMirror(cookies ExpiringBackend) Option {
	return func(s *Store) {
		s.cookies = cookies
	}
}

// WithSeed imports credentials from a read-only source, such as environment
// variables, into the mediums when the store is created and none of them holds
// an access token. The seed is never read again, so later writes and clears win.
func WithSeed(seed Backend) Option {
	return func(s *Store) {
		s.seed = seed
	}
}

// WithLoginPath sets the path that is never recorded as a return path.
func WithLoginPath(path string) Option {
	return func(s *Store) {
		s.loginPath = path
	}
}

// WithClock sets the time source for issued_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store. At least one medium is required.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		loginPath: DefaultLoginPath,
		now:       time.Now,
		stale:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.mediums) == 0 {
		return nil, fmt.Errorf("token store requires at least one medium")
	}
	for _, m := range s.mediums {
		if m.Backend == nil {
			return nil, fmt.Errorf("medium %q has no backend", m.Name)
		}
	}

	s.importSeed(context.Background())
	return s, nil
}

func (s *Store) importSeed(ctx context.Context) {
	if s.seed == nil {
		return
	}
	if _, _, ok := s.lookupAccessToken(ctx); ok {
		return
	}

	seedMedium := Medium{Name: "seed", Backend: s.seed}
	access, ok := s.get(ctx, seedMedium, KeyAuthToken)
	if !ok {
		if access, ok = s.get(ctx, seedMedium, KeyToken); !ok {
			return
		}
	}
	refresh, _ := s.get(ctx, seedMedium, KeyRefreshToken)
	s.storeCredentials(ctx, access, refresh)
	slog.DebugContext(ctx, "credentials imported from seed", "refresh_token", refresh != "")
}

// AccessToken returns the stored access token in "Bearer <token>" form.
// The normalized value is mirrored into the server cookie on every successful read.
func (s *Store) AccessToken(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, medium, ok := s.lookupAccessToken(ctx)
	if !ok {
		slog.DebugContext(ctx, "no access token stored")
		return "", false
	}

	bearer := NormalizeBearer(raw)
	slog.DebugContext(ctx, "access token found", "medium", medium, "token", Mask(bearer))
	s.mirrorServerToken(ctx, bearer)
	return bearer, true
}

// RefreshToken returns the refresh token from the durable medium, falling back to the cookie mirror.
func (s *Store) RefreshToken(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupRefreshToken(ctx)
}

// SetCredentials writes the access token (raw) and, if non-empty, the refresh token
// to every medium, sets the logged-in flag, and mirrors them into cookies.
// Failures are logged and never returned.
func (s *Store) SetCredentials(ctx context.Context, accessToken, refreshToken string) {
	if accessToken == "" {
		slog.WarnContext(ctx, "refusing to store empty access token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeCredentials(ctx, accessToken, refreshToken)
	slog.InfoContext(ctx, "credentials stored", "refresh_token", refreshToken != "", "mediums", len(s.mediums))
}

func (s *Store) storeCredentials(ctx context.Context, accessToken, refreshToken string) {
	entries := []entry{
		{KeyToken, accessToken},
		{KeyAuthToken, accessToken},
		{KeyLoggedIn, "true"},
		{KeyIssuedAt, s.now().UTC().Format(time.RFC3339)},
	}
	if refreshToken != "" {
		entries = append(entries, entry{KeyRefreshToken, refreshToken})
	}

	for _, m := range s.mediums {
		written := true
		for _, e := range entries {
			written = s.set(ctx, m, e.key, e.value) && written
		}
		s.markStale(m.Name, !written)
	}

	if s.cookies != nil {
		written := true
		for _, e := range entries {
			if e.key == KeyIssuedAt {
				continue
			}
			written = s.setCookie(ctx, e.key, e.value, CredentialCookieTTL) && written
		}
		written = s.setCookie(ctx, ServerTokenCookie, NormalizeBearer(accessToken), ServerTokenCookieTTL) && written
		s.markStale(cookieMediumName, !written)
	}
}

// ClearCredentials removes every credential key from every medium, including the
// server cookie. Safe to call when nothing is stored.
func (s *Store) ClearCredentials(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mediums {
		removed := true
		for _, key := range credentialKeys {
			removed = s.remove(ctx, m, key) && removed
		}
		s.markStale(m.Name, !removed)
	}

	if s.cookies != nil {
		cookies := s.cookieMedium()
		removed := true
		for _, key := range credentialKeys {
			removed = s.remove(ctx, cookies, key) && removed
		}
		removed = s.remove(ctx, cookies, ServerTokenCookie) && removed
		s.markStale(cookieMediumName, !removed)
	}

	slog.InfoContext(ctx, "credentials cleared")
}

// IsAuthenticated reports whether any medium holds a plausible access token.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, _, ok := s.lookupAccessToken(ctx)
	return ok && len(raw) >= minTokenLength
}

// Credentials returns a snapshot of the stored session without side effects.
func (s *Store) Credentials(ctx context.Context) Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds Credentials
	creds.AccessToken, _, _ = s.lookupAccessToken(ctx)
	creds.RefreshToken, _ = s.lookupRefreshToken(ctx)

	primary, ok := s.primary()
	if !ok {
		return creds
	}
	if flag, ok := s.get(ctx, primary, KeyLoggedIn); ok {
		creds.LoggedIn = flag == "true" && creds.AccessToken != ""
	}
	if issued, ok := s.get(ctx, primary, KeyIssuedAt); ok {
		if t, err := time.Parse(time.RFC3339, issued); err == nil {
			creds.IssuedAt = t
		}
	}
	return creds
}

// SetReturnPath records where the user was when re-authentication became necessary.
// The login path itself is never recorded.
func (s *Store) SetReturnPath(ctx context.Context, path string) {
	if path == "" || path == s.loginPath {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if primary, ok := s.primary(); ok {
		s.set(ctx, primary, KeyReturnPath, path)
	}
}

// TakeReturnPath returns and forgets the recorded return path.
func (s *Store) TakeReturnPath(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	primary, ok := s.primary()
	if !ok {
		return "", false
	}
	path, ok := s.get(ctx, primary, KeyReturnPath)
	if !ok {
		return "", false
	}
	s.remove(ctx, primary, KeyReturnPath)
	return path, true
}

type entry struct {
	key   string
	value string
}

func (s *Store) lookupAccessToken(ctx context.Context) (string, string, bool) {
	for _, m := range s.readOrder() {
		for _, key := range []string{KeyAuthToken, KeyToken} {
			if value, ok := s.get(ctx, m, key); ok {
				return value, m.Name, true
			}
		}
	}
	return "", "", false
}

func (s *Store) lookupRefreshToken(ctx context.Context) (string, bool) {
	var order []Medium
	if primary, ok := s.primary(); ok {
		order = append(order, primary)
	}
	if s.cookies != nil && !s.stale[cookieMediumName] {
		order = append(order, s.cookieMedium())
	}
	for _, m := range order {
		if value, ok := s.get(ctx, m, KeyRefreshToken); ok {
			return value, true
		}
	}
	return "", false
}

func (s *Store) readOrder() []Medium {
	order := make([]Medium, 0, len(s.mediums)+1)
	for _, m := range s.mediums {
		if !s.stale[m.Name] {
			order = append(order, m)
		}
	}
	if s.cookies != nil && !s.stale[cookieMediumName] {
		order = append(order, s.cookieMedium())
	}
	return order
}

// primary is the first medium still trusted for reads.
func (s *Store) primary() (Medium, bool) {
	for _, m := range s.mediums {
		if !s.stale[m.Name] {
			return m, true
		}
	}
	return Medium{}, false
}

func (s *Store) markStale(name string, stale bool) {
	if stale {
		s.stale[name] = true
		return
	}
	delete(s.stale, name)
}

const cookieMediumName = "cookie"

func (s *Store) cookieMedium() Medium {
	return Medium{Name: cookieMediumName, Backend: s.cookies}
}

func (s *Store) mirrorServerToken(ctx context.Context, bearer string) {
	if s.cookies == nil {
		return
	}
	s.setCookie(ctx, ServerTokenCookie, bearer, ServerTokenCookieTTL)
}

func (s *Store) get(ctx context.Context, m Medium, key string) (string, bool) {
	value, err := m.Backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false
	}
	if err != nil {
		slog.WarnContext(ctx, "token store read failed", "medium", m.Name, "key", key, "error", err)
		return "", false
	}
	return value, value != ""
}

func (s *Store) set(ctx context.Context, m Medium, key, value string) bool {
	if err := m.Backend.Set(ctx, key, value); err != nil {
		slog.ErrorContext(ctx, "token store write failed", "medium", m.Name, "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) setCookie(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := s.cookies.SetWithExpiry(ctx, key, value, ttl); err != nil {
		slog.ErrorContext(ctx, "token store write failed", "medium", cookieMediumName, "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) remove(ctx context.Context, m Medium, key string) bool {
	if err := m.Backend.Remove(ctx, key); err != nil {
		slog.ErrorContext(ctx, "token store remove failed", "medium", m.Name, "key", key, "error", err)
		return false
	}
	return true
}
