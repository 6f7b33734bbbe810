package ratelimit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, method, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "http://example/messages", nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	svc, clock := newTestService(t, smallLimits())
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	h := Middleware(Options{Decider: svc, Stats: stats, Logger: quietLogger()})(next)

	w1 := serve(h, http.MethodGet, "10.0.0.1:1234")
	require.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "2", w1.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w1.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w1.Header().Get("X-RateLimit-Reset"))

	w2 := serve(h, http.MethodGet, "10.0.0.1:1234")
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "0", w2.Header().Get("X-RateLimit-Remaining"))

	w3 := serve(h, http.MethodGet, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, w3.Code)
	assert.Equal(t, "0", w3.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w3.Header().Get("Retry-After"))
	assert.NotEmpty(t, w3.Header().Get("X-Request-ID"))
	assert.Equal(t, "application/json", w3.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.NewDecoder(w3.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, string(domain.ReasonQuotaExceeded), body.Error.Code)
	assert.Greater(t, body.RetryAfter, 0)

	reset, err := strconv.ParseInt(w3.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, clock.Now().UnixMilli())

	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(2), stats.Total().Allowed)
	assert.Equal(t, int64(1), stats.Total().Denied)
}

func TestMiddleware_DifferentKeysHaveIndependentQuota(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "10.0.0.1:1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "10.0.0.2:1").Code)
}

func TestMiddleware_WindowResetAllowsAgain(t *testing.T) {
	svc, clock := newTestService(t, smallLimits())
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve(h, http.MethodGet, "10.0.0.1:1")
	serve(h, http.MethodGet, "10.0.0.1:1")
	require.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, "10.0.0.1:1").Code)

	clock.Advance(61 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "10.0.0.1:1").Code)
}

func TestMiddleware_BannedSourceGets403(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	require.True(t, svc.Blocklist.Ban(context.Background(), "10.9.9.9"))

	called := false
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := serve(h, http.MethodGet, "10.9.9.9:4000")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
	assert.Empty(t, w.Header().Get("Retry-After"))
	// cota configurada do sujeito, sem reset: ban não expira
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Reset"))

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(domain.ReasonSourceBanned), body.Error.Code)
}

func TestMiddleware_BurstDenialCarriesQuotaHeaders(t *testing.T) {
	limits := smallLimits()
	limits.Burst.Threshold = 3
	svc, clock := newTestService(t, limits)
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(h, http.MethodPost, "10.0.0.1:1234").Code)
	}
	w := serve(h, http.MethodPost, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clock.Now().Add(120*time.Second).UnixMilli(), 10), w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "120", w.Header().Get("Retry-After"))
}

func TestMiddleware_UsesSubjectAndTierFromContext(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "http://example/messages", nil)
	r = r.WithContext(ContextWithSubject(r.Context(), Subject{ID: "u1", Tier: domain.TierPremium}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	h := Middleware(Options{Decider: svc, Logger: quietLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/messages", nil)
		r.RemoteAddr = "10.0.0.3:1"
		r.Header.Set("X-Request-ID", "req-42")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
	}
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestMiddleware_NilDeciderIsPassThrough(t *testing.T) {
	h := Middleware(Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	assert.Equal(t, http.StatusTeapot, serve(h, http.MethodGet, "10.0.0.1:1").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, StatusFor(domain.ReasonAccountLocked))
	assert.Equal(t, http.StatusForbidden, StatusFor(domain.ReasonSourceBlocked))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(domain.ReasonBurstBlocked))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(domain.ReasonGlobalQuotaExceeded))
}
