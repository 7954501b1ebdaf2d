package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChiRouter_AnyMatchesEveryMethodAndPath(t *testing.T) {
	r := NewChi()
	var pattern string
	r.Any(CatchAll, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pattern = RoutePattern(req)
		w.WriteHeader(http.StatusTeapot)
	}))
	r.Get("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/a/b/c"},
		{http.MethodPost, "/upload.bin"},
		{http.MethodDelete, "/"},
	} {
		rec := httptest.NewRecorder()
		r.Mux().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
		if pattern != CatchAll {
			t.Fatalf("pattern = %q", pattern)
		}
	}

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("specific route shadowed by catch-all: %d", rec.Code)
	}
}

func TestRoutePattern_FallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw", nil)
	if got := RoutePattern(req); got != "/raw" {
		t.Fatalf("got %q", got)
	}
}
