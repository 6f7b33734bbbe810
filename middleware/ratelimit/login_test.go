package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAuth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func login(h http.Handler, account, password, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/auth/login", nil)
	r.RemoteAddr = remote
	r.Header.Set("X-Account-ID", account)
	r.Header.Set("X-Password", password)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestLoginMiddleware_LocksAccountAfterFailures(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	h := LoginMiddleware(LoginOptions{
		Options: Options{Decider: svc, Logger: quietLogger()},
		Guard:   svc.Login,
	})(fakeAuth())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, login(h, "Alice@Example.com", "bad", "10.0.0.1:1").Code)
	}

	// mesmo com a senha certa, a conta está travada
	w := login(h, "alice@example.com", "secret", "10.0.0.2:1")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(domain.ReasonAccountLocked), body.Error.Code)
}

func TestLoginMiddleware_SuccessResetsFailures(t *testing.T) {
	svc, _ := newTestService(t, smallLimits())
	h := LoginMiddleware(LoginOptions{
		Options: Options{Decider: svc, Logger: quietLogger()},
		Guard:   svc.Login,
	})(fakeAuth())

	login(h, "bob", "bad", "10.0.0.1:1")
	login(h, "bob", "bad", "10.0.0.1:1")
	require.Equal(t, http.StatusOK, login(h, "bob", "secret", "10.0.0.1:1").Code)
	login(h, "bob", "bad", "10.0.0.1:1")
	login(h, "bob", "bad", "10.0.0.1:1")

	assert.Equal(t, http.StatusOK, login(h, "bob", "secret", "10.0.0.1:1").Code)
}

func TestLoginMiddleware_BlocksSourceAcrossAccounts(t *testing.T) {
	limits := smallLimits()
	limits.Login.MaxSourceFailures = 4
	svc, _ := newTestService(t, limits)
	h := LoginMiddleware(LoginOptions{
		Options: Options{Decider: svc, Logger: quietLogger()},
		Guard:   svc.Login,
	})(fakeAuth())

	for _, acct := range []string{"a", "b", "c", "d"} {
		require.Equal(t, http.StatusUnauthorized, login(h, acct, "bad", "10.6.6.6:1").Code)
	}

	w := login(h, "e", "secret", "10.6.6.6:1")
	require.Equal(t, http.StatusForbidden, w.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(domain.ReasonSourceBlocked), body.Error.Code)

	// outro endereço segue livre
	assert.Equal(t, http.StatusOK, login(h, "e", "secret", "10.6.6.7:1").Code)
}
