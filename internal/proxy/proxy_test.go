package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const longToken = "eyJhbGciOiJIUzI1NiJ9.payload.signature"

func newTestProxy(t *testing.T, backend *httptest.Server, opts ...Option) *Proxy {
	t.Helper()
	p, err := New(backend.URL+"/api/v1", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func multipartRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var body strings.Builder
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, "jpeg-bytes")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api/v1"); err == nil {
		t.Fatal("New() error = nil, want error for relative URL")
	}
}

func TestDebugHeaders(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		cookies    []*http.Cookie
		wantToken  string
		wantHas    bool
		wantCookie map[string]string
	}{
		{
			name:      "authorization header",
			header:    "Bearer " + longToken,
			wantToken: "Bearer eyJ...ature",
			wantHas:   true,
		},
		{
			name:      "token cookie is normalized",
			cookies:   []*http.Cookie{{Name: "token", Value: longToken}},
			wantToken: "Bearer eyJ...ature",
			wantHas:   true,
			wantCookie: map[string]string{
				"token": "eyJhbGciOi...ature",
			},
		},
		{
			name:    "auth_token cookie",
			cookies: []*http.Cookie{{Name: "auth_token", Value: "short"}, {Name: "theme", Value: "dark"}},
			// "Bearer short" is 12 characters
			wantToken: "***",
			wantHas:   true,
			wantCookie: map[string]string{
				"auth_token": "***",
				"theme":      "dark",
			},
		},
		{
			name: "no credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(http.NotFoundHandler())
			defer backend.Close()
			p := newTestProxy(t, backend)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/debug-headers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			got := decode[DebugHeadersResponse](t, rec)

			if got.Message != "Debug Headers Information" {
				t.Errorf("message = %q", got.Message)
			}
			if got.HasAuthToken != tt.wantHas {
				t.Errorf("hasAuthToken = %v, want %v", got.HasAuthToken, tt.wantHas)
			}
			if !tt.wantHas {
				if got.AuthToken != nil {
					t.Errorf("authToken = %q, want null", *got.AuthToken)
				}
				return
			}
			if got.AuthToken == nil {
				t.Fatal("authToken = null")
			}
			if *got.AuthToken != tt.wantToken {
				t.Errorf("authToken = %q, want %q", *got.AuthToken, tt.wantToken)
			}
			for name, want := range tt.wantCookie {
				if got.Cookies[name] != want {
					t.Errorf("cookie %s = %q, want %q", name, got.Cookies[name], want)
				}
			}
			for name, value := range got.Headers {
				if strings.Contains(value, "payload") {
					t.Errorf("header %s = %q leaks the token", name, value)
				}
			}
		})
	}
}

func TestDebugHeadersMethod(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	p := newTestProxy(t, backend)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/debug-headers", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestUploadForwards(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		cookies  []*http.Cookie
		wantAuth string
	}{
		{
			name:     "authorization header",
			header:   "Bearer header-token",
			wantAuth: "Bearer header-token",
		},
		{
			name: "server cookie wins over auth_token",
			cookies: []*http.Cookie{
				{Name: "auth_token", Value: "client-token"},
				{Name: "auth_token_for_server", Value: "Bearer server-token"},
			},
			wantAuth: "Bearer server-token",
		},
		{
			name:     "raw token cookie gets the prefix",
			cookies:  []*http.Cookie{{Name: "token", Value: "raw-token"}},
			wantAuth: "Bearer raw-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/uploads/news/7/photos" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != tt.wantAuth {
					t.Errorf("Authorization = %q, want %q", got, tt.wantAuth)
				}
				if r.Header.Get("Cookie") != "" {
					t.Errorf("Cookie header forwarded: %q", r.Header.Get("Cookie"))
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("ParseMultipartForm() error = %v", err)
					return
				}
				if len(r.MultipartForm.File["files"]) != 1 {
					t.Errorf("files = %d, want 1", len(r.MultipartForm.File["files"]))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"photos":[{"id":1,"photo_url":"/p/1.jpg"}]}`)
			}))
			defer backend.Close()
			p := newTestProxy(t, backend)

			req := multipartRequest(t, "/api/v1/uploads/news/7/photos")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, req)

			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), `"photo_url":"/p/1.jpg"`) {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
}

func TestUploadRejectsBeforeForwarding(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		auth       bool
		wantStatus int
	}{
		{name: "no credentials", target: "/api/v1/uploads/news/7/photos", wantStatus: http.StatusUnauthorized},
		{name: "non-numeric id", target: "/api/v1/uploads/news/abc/photos", auth: true, wantStatus: http.StatusBadRequest},
		{name: "zero id", target: "/api/v1/uploads/news/0/photos", auth: true, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("backend called: %s", r.URL.Path)
			}))
			defer backend.Close()
			p := newTestProxy(t, backend)

			req := multipartRequest(t, tt.target)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer x")
			}
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestUploadBackendErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantStatus  int
		wantError   string
	}{
		{
			name:        "html page",
			status:      http.StatusOK,
			contentType: "text/html; charset=utf-8",
			body:        "<html>not found</html>",
			wantStatus:  http.StatusNotFound,
			wantError:   "Invalid API endpoint or server error",
		},
		{
			name:        "backend error message",
			status:      http.StatusRequestEntityTooLarge,
			contentType: "application/json",
			body:        `{"error":"file too large"}`,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantError:   "file too large",
		},
		{
			name:        "backend error without message",
			status:      http.StatusInternalServerError,
			contentType: "application/json",
			body:        `{}`,
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Failed to upload news photos",
		},
		{
			name:        "backend rejects credentials",
			status:      http.StatusUnauthorized,
			contentType: "text/plain",
			body:        "unauthorized",
			wantStatus:  http.StatusUnauthorized,
			wantError:   "Failed to upload news photos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer backend.Close()
			p := newTestProxy(t, backend)

			req := multipartRequest(t, "/api/v1/uploads/news/3/photos")
			req.Header.Set("Authorization", "Bearer x")
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			got := decode[UploadErrorResponse](t, rec)
			if got.Error != tt.wantError {
				t.Errorf("error = %q, want %q", got.Error, tt.wantError)
			}
			if tt.contentType != "text/html; charset=utf-8" && got.Status != tt.wantStatus {
				t.Errorf("status field = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestUploadUnreachableBackend(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	p := newTestProxy(t, backend)
	backend.Close()

	req := multipartRequest(t, "/api/v1/uploads/news/3/photos")
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "Failed to upload news photos" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer backend.Close()
	defer close(release)
	p := newTestProxy(t, backend, WithUploadTimeout(50*time.Millisecond))

	req := multipartRequest(t, "/api/v1/uploads/news/3/photos")
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret-token-in-panic")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-token-in-panic") {
		t.Errorf("panic value leaked: %s", rec.Body)
	}
	got := decode[ErrorResponse](t, rec)
	if got.Error != "Internal Server Error" || got.Message != "" {
		t.Errorf("response = %+v", got)
	}
}

func TestStartShutdown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	p := newTestProxy(t, backend)

	errCh, err := p.Start(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for err := range errCh {
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("runtime error = %v", err)
		}
	}
}
