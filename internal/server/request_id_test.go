package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/logging"
)

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	var captured string
	handler := requestIDMiddlewareWithGenerator(nil, func() string { return "generated-id" }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))

	if captured != "generated-id" {
		t.Fatalf("context request id = %q", captured)
	}
	if got := rr.Header().Get("X-Request-Id"); got != "generated-id" {
		t.Fatalf("response header = %q", got)
	}
}

func TestRequestIDPreservesIncomingHeader(t *testing.T) {
	handler := requestIDMiddlewareWithGenerator(nil, func() string { return "should-not-be-used" }, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
	req.Header.Set("X-Request-Id", "upstream-7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "upstream-7" {
		t.Fatalf("response header = %q", got)
	}
}

func TestClientIDFromHeaderAndQuery(t *testing.T) {
	var fromCtx string
	handler := requestIDMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx, _ = logging.ClientIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.Header.Set("X-Client-Id", "header-client")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if fromCtx != "header-client" {
		t.Fatalf("client id = %q", fromCtx)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/progress?client=query-client", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if fromCtx != "query-client" {
		t.Fatalf("client id = %q", fromCtx)
	}
}

func TestNewRequestIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newRequestID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
