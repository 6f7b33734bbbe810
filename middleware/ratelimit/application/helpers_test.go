package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// início exato de minuto: buckets de 60s alinham com o relógio
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

func memOptions(t *testing.T) (Options, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return Options{
		Store:  infra.NewMemoryStore(infra.WithClock(clock.Now)),
		Logger: quietLogger(),
		Now:    clock.Now,
	}, clock
}

var errBoom = errors.New("connection refused")

// failingStore falha todas as chamadas e conta quantas recebeu.
type failingStore struct {
	calls atomic.Int64
}

func (s *failingStore) fail() error {
	s.calls.Add(1)
	return errBoom
}

func (s *failingStore) Incr(context.Context, string) (int64, error) { return 0, s.fail() }
func (s *failingStore) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, s.fail()
}
func (s *failingStore) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, s.fail()
}
func (s *failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.fail() }
func (s *failingStore) Set(context.Context, string, string, time.Duration) error {
	return s.fail()
}
func (s *failingStore) Del(context.Context, ...string) (int64, error) { return 0, s.fail() }
func (s *failingStore) TTL(context.Context, string) (time.Duration, error) { return 0, s.fail() }
func (s *failingStore) SAdd(context.Context, string, ...string) (int64, error) {
	return 0, s.fail()
}
func (s *failingStore) SIsMember(context.Context, string, string) (bool, error) {
	return false, s.fail()
}

var _ domain.CounterStore = (*failingStore)(nil)

// slowStore só responde quando o ctx acaba; exercita o timeout por chamada.
type slowStore struct{ failingStore }

func (s *slowStore) IncrWithExpiry(ctx context.Context, _ string, _ time.Duration) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
