package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCookieTTL is the lifetime of cookies written through Set.
const DefaultCookieTTL = 30 * 24 * time.Hour

// CookieJar is the cookie mirror medium. It holds cookies for a single origin,
// honours their expiry, and implements http.CookieJar so an http.Client can
// send the mirror to server-side handlers. When a file path is configured the
// jar is persisted after every change and reloaded on construction.
type CookieJar struct {
	mu       sync.Mutex
	path     string
	ttl      time.Duration
	now      func() time.Time
	cookies  map[string]*http.Cookie
	strictFn func(name string) bool
}

var (
	_ ExpiringBackend = (*CookieJar)(nil)
	_ http.CookieJar  = (*CookieJar)(nil)
)

// CookieJarOption configures a CookieJar.
type CookieJarOption func(*CookieJar)

// WithCookieFile persists the jar at path.
func WithCookieFile(path string) CookieJarOption {
	return func(j *CookieJar) {
		j.path = path
	}
}

// WithCookieTTL overrides DefaultCookieTTL for Set.
func WithCookieTTL(ttl time.Duration) CookieJarOption {
	return func(j *CookieJar) {
		j.ttl = ttl
	}
}

// WithCookieClock sets the time source used for expiry.
func WithCookieClock(now func() time.Time) CookieJarOption {
	return func(j *CookieJar) {
		j.now = now
	}
}

// NewCookieJar creates a CookieJar, loading previously persisted cookies if a file is configured.
func NewCookieJar(opts ...CookieJarOption) (*CookieJar, error) {
	j := &CookieJar{
		ttl:     DefaultCookieTTL,
		now:     time.Now,
		cookies: map[string]*http.Cookie{},
		strictFn: func(name string) bool {
			return name == ServerTokenCookie
		},
	}
	for _, opt := range opts {
		opt(j)
	}

	if j.path != "" {
		if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
			return nil, err
		}
		if err := j.load(); err != nil {
			return nil, fmt.Errorf("loading cookies: %w", err)
		}
	}

	return j, nil
}

// Get returns the value of a live cookie.
func (j *CookieJar) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.cookies[key]
	if !ok || c.Value == "" {
		return "", ErrNotFound
	}
	if j.expired(c) {
		delete(j.cookies, key)
		return "", ErrNotFound
	}
	return c.Value, nil
}

// Set stores a cookie with the jar's default lifetime.
func (j *CookieJar) Set(ctx context.Context, key, value string) error {
	return j.SetWithExpiry(ctx, key, value, j.ttl)
}

// SetWithExpiry stores a cookie that expires after ttl.
func (j *CookieJar) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sameSite := http.SameSiteLaxMode
	if j.strictFn(key) {
		sameSite = http.SameSiteStrictMode
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies[key] = &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  j.now().Add(ttl),
		SameSite: sameSite,
	}
	return j.save(ctx)
}

// Remove expires the cookie immediately.
func (j *CookieJar) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.cookies[key]; !ok {
		return nil
	}
	delete(j.cookies, key)
	return j.save(ctx)
}

// Cookies returns the live cookies in name/value form, as a browser would send them.
func (j *CookieJar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.cookies))
	for name, c := range j.cookies {
		if j.expired(c) {
			delete(j.cookies, name)
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SetCookies applies Set-Cookie responses: MaxAge < 0 or a past Expires deletes the cookie.
func (j *CookieJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			c.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case c.Expires.IsZero():
			c.Expires = now.Add(j.ttl)
		}
		if !c.Expires.After(now) {
			delete(j.cookies, c.Name)
			continue
		}
		stored := *c
		stored.MaxAge = 0
		j.cookies[c.Name] = &stored
	}
	_ = j.save(context.Background())
}

func (j *CookieJar) expired(c *http.Cookie) bool {
	return !c.Expires.IsZero() && !c.Expires.After(j.now())
}

type persistedCookie struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Path     string        `json:"path"`
	Expires  time.Time     `json:"expires"`
	SameSite http.SameSite `json:"same_site"`
}

func (j *CookieJar) save(ctx context.Context) error {
	if j.path == "" {
		return nil
	}

	snapshot := make([]persistedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if j.expired(c) {
			continue
		}
		snapshot = append(snapshot, persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expires:  c.Expires,
			SameSite: c.SameSite,
		})
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(ctx, j.path, data)
}

func (j *CookieJar) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var snapshot []persistedCookie
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	for _, pc := range snapshot {
		c := &http.Cookie{
			Name:     pc.Name,
			Value:    pc.Value,
			Path:     pc.Path,
			Expires:  pc.Expires,
			SameSite: pc.SameSite,
		}
		if j.expired(c) {
			continue
		}
		j.cookies[c.Name] = c
	}
	return nil
}
