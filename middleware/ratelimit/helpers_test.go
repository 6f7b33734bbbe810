package ratelimit

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// smallLimits reduz o tier free para facilitar os testes de borda.
func smallLimits() domain.Limits {
	l := domain.DefaultLimits()
	l.Policies[domain.TierFree][domain.ActionRead] = domain.Policy{Limit: 2, WindowSeconds: 60}
	l.Policies[domain.TierFree][domain.ActionWrite] = domain.Policy{Limit: 10, WindowSeconds: 60}
	l.Login.MaxAccountFailures = 3
	return l
}

func newTestService(t *testing.T, limits domain.Limits) (*application.Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := infra.NewMemoryStore(infra.WithClock(clock.Now))
	svc, err := application.New(application.Options{
		Store:  store,
		Logger: quietLogger(),
		Now:    clock.Now,
	}, limits)
	require.NoError(t, err)
	return svc, clock
}
