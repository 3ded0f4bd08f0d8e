package tokenstore

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

// exerciseBackend runs the common get/set/remove contract against b.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty backend: got %v, want ErrNotFound", err)
	}
	if err := b.Set(ctx, KeyToken, "value-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := b.Get(ctx, KeyToken); err != nil || got != "value-1" {
		t.Fatalf("Get = %q, %v; want value-1", got, err)
	}
	if err := b.Set(ctx, KeyToken, "value-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := b.Get(ctx, KeyToken); got != "value-2" {
		t.Fatalf("Get after overwrite = %q", got)
	}
	if err := b.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := b.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after remove: got %v, want ErrNotFound", err)
	}
	if err := b.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	exerciseBackend(t, b)

	ctx := context.Background()
	if err := b.Set(ctx, KeyRefreshToken, "persisted"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := reopened.Get(ctx, KeyRefreshToken); err != nil || got != "persisted" {
		t.Errorf("reopened Get = %q, %v", got, err)
	}
}

func TestFileBackendRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"token":"x"}`), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(context.Background(), KeyToken); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestFileBackendRequiresPath(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()

	b, err := NewKeyringBackend("opnadmin-test", "alice")
	if err != nil {
		t.Fatal(err)
	}
	exerciseBackend(t, b)
}

func TestKeyringBackendValidation(t *testing.T) {
	if _, err := NewKeyringBackend("", "alice"); err == nil {
		t.Error("expected error for empty service")
	}
	if _, err := NewKeyringBackend("svc", ""); err == nil {
		t.Error("expected error for empty user")
	}
}

func TestEnvBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewEnvBackend("OPNADMIN_TEST_")
	if err != nil {
		t.Fatal(err)
	}

	if got := b.VarName(KeyRefreshToken); got != "OPNADMIN_TEST_REFRESH_TOKEN" {
		t.Errorf("VarName(refreshToken) = %q", got)
	}
	if got := b.VarName(KeyAuthToken); got != "OPNADMIN_TEST_AUTH_TOKEN" {
		t.Errorf("VarName(auth_token) = %q", got)
	}

	if _, err := b.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unset: %v", err)
	}

	t.Setenv("OPNADMIN_TEST_TOKEN", "from-env")
	if got, err := b.Get(ctx, KeyToken); err != nil || got != "from-env" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := b.Set(ctx, KeyToken, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set: got %v, want ErrReadOnly", err)
	}
	if err := b.Remove(ctx, KeyToken); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Remove of set variable: got %v, want ErrReadOnly", err)
	}
	if err := b.Remove(ctx, KeyRefreshToken); err != nil {
		t.Errorf("Remove of unset variable should be a no-op: %v", err)
	}
}

func TestCookieJarBackend(t *testing.T) {
	jar, err := NewCookieJar()
	if err != nil {
		t.Fatal(err)
	}
	exerciseBackend(t, jar)
}

func TestCookieJarExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jar, err := NewCookieJar(WithCookieClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	if err := jar.SetWithExpiry(ctx, ServerTokenCookie, "Bearer abc", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := jar.Set(ctx, KeyToken, "abc"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(59 * time.Minute)
	if _, err := jar.Get(ctx, ServerTokenCookie); err != nil {
		t.Fatalf("server cookie expired too early: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := jar.Get(ctx, ServerTokenCookie); !errors.Is(err, ErrNotFound) {
		t.Errorf("server cookie should have expired, got %v", err)
	}
	if got, err := jar.Get(ctx, KeyToken); err != nil || got != "abc" {
		t.Errorf("30-day cookie = %q, %v", got, err)
	}

	now = now.Add(DefaultCookieTTL)
	if cookies := jar.Cookies(nil); len(cookies) != 0 {
		t.Errorf("expected no live cookies, got %d", len(cookies))
	}
}

func TestCookieJarSetCookies(t *testing.T) {
	ctx := context.Background()
	jar, err := NewCookieJar()
	if err != nil {
		t.Fatal(err)
	}

	jar.SetCookies(nil, []*http.Cookie{{Name: KeyToken, Value: "from-server", MaxAge: 60}})
	if got, err := jar.Get(ctx, KeyToken); err != nil || got != "from-server" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	jar.SetCookies(nil, []*http.Cookie{{Name: KeyToken, MaxAge: -1}})
	if _, err := jar.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("cookie deleted by MaxAge<0 still present: %v", err)
	}
}

func TestCookieJarPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cookies.json")

	jar, err := NewCookieJar(WithCookieFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := jar.SetWithExpiry(ctx, ServerTokenCookie, "Bearer persisted", time.Hour); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewCookieJar(WithCookieFile(path))
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get(ctx, ServerTokenCookie)
	if err != nil || got != "Bearer persisted" {
		t.Fatalf("reloaded Get = %q, %v", got, err)
	}

	cookies := reloaded.Cookies(nil)
	if len(cookies) != 1 || cookies[0].Name != ServerTokenCookie {
		t.Errorf("Cookies() = %v", cookies)
	}
}
