package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen, _ = r.Context().Value(config.TRACE_ID_KEY).(string)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestIsValidBearerToken(t *testing.T) {
	log := logger_i.NewLogger("test")
	tests := []struct {
		name     string
		header   string
		expected string
		want     bool
	}{
		{"valid", "Bearer abc", "abc", true},
		{"wrong token", "Bearer abd", "abc", false},
		{"missing prefix", "abc", "abc", false},
		{"empty header", "", "abc", false},
		{"auth disabled", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidBearerToken(tt.header, tt.expected, log))
		})
	}
}

func TestWrap_KeepsIncomingTrace(t *testing.T) {
	chain := NewChain(config.ServerConfig{AuthToken: "abc", RateLimitPerSecond: 10, RateLimitBurst: 10})
	var seen string

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Trace-Id", "trace-42")
	rec := httptest.NewRecorder()
	chain.Wrap(okHandler(&seen)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "trace-42", seen)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Trace-Id"))
}

func TestWrap_RejectsUnauthorized(t *testing.T) {
	chain := NewChain(config.ServerConfig{AuthToken: "abc", RateLimitPerSecond: 10, RateLimitBurst: 10})
	rec := httptest.NewRecorder()
	chain.Wrap(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrap_RateLimitsPerIP(t *testing.T) {
	chain := NewChain(config.ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 2})
	handler := chain.Wrap(okHandler(nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIPRateLimiter_PerIPAndEviction(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst of one is spent")
	assert.True(t, l.Allow("10.0.0.2"), "other addresses have their own bucket")

	for i := range maxTrackedIPs {
		l.ips[fmt.Sprintf("ip-%d", i)] = &ipLimiter{limiter: rate.NewLimiter(1, 1), lastSeen: now}
	}
	now = now.Add(limiterIdle + time.Second)
	assert.True(t, l.Allow("10.0.0.3"))
	assert.Equal(t, 1, l.tracked(), "idle buckets are dropped when the table is full")
}
