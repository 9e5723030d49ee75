package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubTenants struct {
	tenant *domain.Tenant
	hash   string
	err    error
}

func (s stubTenants) Create(ctx context.Context, t *domain.Tenant) error { return nil }

func (s stubTenants) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if hash != s.hash {
		return nil, store.ErrNotFound
	}
	return s.tenant, nil
}

func echoTenant() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(TenantFromContext(r.Context()).Name))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	tenant := &domain.Tenant{ID: uuid.New(), Name: "acme"}
	h := APIKeyAuth(stubTenants{tenant: tenant, hash: HashAPIKey("mem_good")})(echoTenant())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer mem_good", http.StatusOK},
		{"case insensitive scheme", "bearer mem_good", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic mem_good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown key", "Bearer mem_bad", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "acme", rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuthStoreFailureIsNotUnauthorized(t *testing.T) {
	h := APIKeyAuth(stubTenants{err: errors.New("connection refused")})(echoTenant())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer mem_any")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(addr, auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", "a"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5678", "a"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1234", "a"))

	// A different token or port from the same address shares the bucket.
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:9999", "b"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1234", ""))

	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234", "a"))
}

func TestRateLimitIgnoresRotatedTokens(t *testing.T) {
	var reached int
	h := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
	}))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("Authorization", fmt.Sprintf("Bearer bogus-%d", i))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 1, reached)
}

func TestRateLimitTenant(t *testing.T) {
	h := RateLimitTenant(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(tenant *domain.Tenant, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if tenant != nil {
			req = req.WithContext(WithTenant(req.Context(), tenant))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	a := &domain.Tenant{ID: uuid.New()}
	b := &domain.Tenant{ID: uuid.New()}
	assert.Equal(t, http.StatusOK, call(a, "10.0.0.1:1"))
	// The tenant's bucket follows it across addresses.
	assert.Equal(t, http.StatusTooManyRequests, call(a, "10.0.0.9:1"))
	assert.Equal(t, http.StatusOK, call(b, "10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, call(nil, "10.0.0.1:1"))
}

func TestRateLimiterEvictsLeastRecent(t *testing.T) {
	rl := NewRateLimiter(1, 1, 2)
	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))
	require.True(t, rl.Allow("c"))

	// "a" was evicted and starts with a fresh bucket.
	assert.True(t, rl.Allow("a"))
	assert.Equal(t, 2, rl.limiters.Len())
}

func TestMetricsAndLoggingLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var m Metrics

	statuses := []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests}
	for _, status := range statuses {
		h := m.Middleware(Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	}

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap["request_count"])
	assert.Equal(t, int64(1), snap["client_error_count"])
	assert.Equal(t, int64(1), snap["server_error_count"])
	assert.Equal(t, int64(1), snap["rate_limited_count"])

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(404), entries[1].ContextMap()["status"])
}
