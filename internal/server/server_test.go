package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/api"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/storage"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(storage.Config{
		Root:    filepath.Join(dir, "media"),
		TempDir: filepath.Join(dir, "tmp"),
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	handler := api.NewHandler(store, nil, nil, cfg.Logger)
	srv, err := New(handler, cfg)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func TestServerRoutesHealthz(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestServerServesMetrics(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; version=0.0.4" {
		t.Fatalf("content type %q", ct)
	}
}

func TestServerUnknownRoute(t *testing.T) {
	srv := newTestServer(t, Config{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestServerThrottlesUploads(t *testing.T) {
	srv := newTestServer(t, Config{
		RateLimit: RateLimitConfig{UploadLimit: 1, UploadWindow: time.Hour},
	})

	first := serve(srv, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first upload throttled: %d", first.Code)
	}

	second := serve(srv, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing on throttled response")
	}
}

func TestServerGlobalRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{
		RateLimit: RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 1},
	})

	if rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}
	if rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
}

func TestServerRejectsBadCORSConfig(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(storage.Config{
		Root:    filepath.Join(dir, "media"),
		TempDir: filepath.Join(dir, "tmp"),
	})
	if err != nil {
		t.Fatal(err)
	}
	handler := api.NewHandler(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := New(handler, Config{CORS: CORSConfig{AllowedOrigins: []string{"not a url"}}}); err == nil {
		t.Fatal("expected config error")
	}
}
