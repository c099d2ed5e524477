package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	handler := RateLimit(1, 3, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "request %d within burst should pass", i+1)
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	handler := RateLimit(1, 2, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.RemoteAddr = "198.51.100.8:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_SeparateBucketsPerIP(t *testing.T) {
	handler := RateLimit(1, 1, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req1.RemoteAddr = "198.51.100.9:1234"
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req1)
	assert.Equal(t, http.StatusOK, rr1.Code)

	// Same IP, bucket drained.
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req1)
	assert.Equal(t, http.StatusTooManyRequests, rr2.Code)

	// Different IP, fresh bucket.
	req3 := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req3.RemoteAddr = "198.51.100.10:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, req3)
	assert.Equal(t, http.StatusOK, rr3.Code)
}

func TestVisitorStore_CleanupEvictsStaleEntries(t *testing.T) {
	store := newVisitorStore(1, 1, time.Minute)

	current := time.Now()
	store.nowFunc = func() time.Time { return current }

	store.getVisitor("198.51.100.1")
	store.getVisitor("198.51.100.2")
	assert.Equal(t, 2, store.len())

	// Advance past the TTL and refresh only one visitor.
	current = current.Add(2 * time.Minute)
	store.getVisitor("198.51.100.1")
	store.cleanup()

	assert.Equal(t, 1, store.len())
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr", "203.0.113.5:9999", "", "", "203.0.113.5"},
		{"x-forwarded-for single", "203.0.113.5:9999", "198.51.100.1", "", "198.51.100.1"},
		{"x-forwarded-for chain", "203.0.113.5:9999", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"x-forwarded-for garbage falls back", "203.0.113.5:9999", "not-an-ip", "", "203.0.113.5"},
		{"x-real-ip", "203.0.113.5:9999", "", "198.51.100.2", "198.51.100.2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
