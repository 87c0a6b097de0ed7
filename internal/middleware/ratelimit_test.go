package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func rateLimitedHandler(limit int) http.Handler {
	rl := NewRateLimiter(limit)
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hitFrom(t *testing.T, h http.Handler, remoteAddr string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/search?q=test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	h := rateLimitedHandler(2)

	for i := 0; i < 2; i++ {
		if code := hitFrom(t, h, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := hitFrom(t, h, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("over-limit request: status = %d, want 429", code)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	h := rateLimitedHandler(1)

	if code := hitFrom(t, h, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", code)
	}
	if code := hitFrom(t, h, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("first client over limit: status = %d, want 429", code)
	}

	// A different IP has its own bucket.
	if code := hitFrom(t, h, "10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", code)
	}
}

func TestRateLimiterUsesForwardedFor(t *testing.T) {
	h := rateLimitedHandler(1)

	hit := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/catalog/search?q=test", nil)
		req.RemoteAddr = "127.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := hit("203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", code)
	}
	if code := hit("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("same forwarded client: status = %d, want 429", code)
	}
	if code := hit("203.0.113.8"); code != http.StatusOK {
		t.Errorf("different forwarded client: status = %d, want 200", code)
	}
}
