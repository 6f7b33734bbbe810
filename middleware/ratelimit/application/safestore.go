package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const defaultStoreTimeout = 50 * time.Millisecond

// safeStore concentra a política fail-open: timeout por chamada, log em warn,
// hook de métricas e ok=false para o chamador devolver seu valor padrão.
type safeStore struct {
	store   domain.CounterStore
	timeout time.Duration
	logger  *slog.Logger
	onError func(op string, err error)
}

func newSafeStore(store domain.CounterStore, timeout time.Duration, logger *slog.Logger, onError func(string, error)) *safeStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &safeStore{store: store, timeout: timeout, logger: logger, onError: onError}
}

// call executa fn com timeout; retorna false em qualquer erro (timeout incluso).
func (s *safeStore) call(ctx context.Context, op, key string, fn func(ctx context.Context) error) bool {
	if s == nil {
		return false
	}
	var err error
	if s.store == nil {
		err = domain.ErrNoStore
	} else {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err = fn(cctx)
		cancel()
	}

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
		s.logger.Warn("counter store call failed, failing open", "op", op, "key", key, "error", err)
		if s.onError != nil {
			s.onError(op, err)
		}
		return false
	}
	return true
}

func (s *safeStore) incrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	var n int64
	ok := s.call(ctx, "incr", key, func(ctx context.Context) (err error) {
		n, err = s.store.IncrWithExpiry(ctx, key, ttl)
		return err
	})
	return n, ok
}

func (s *safeStore) get(ctx context.Context, key string) (string, bool, bool) {
	var (
		val   string
		found bool
	)
	ok := s.call(ctx, "get", key, func(ctx context.Context) (err error) {
		val, found, err = s.store.Get(ctx, key)
		return err
	})
	return val, found, ok
}

func (s *safeStore) set(ctx context.Context, key, value string, ttl time.Duration) bool {
	return s.call(ctx, "set", key, func(ctx context.Context) error {
		return s.store.Set(ctx, key, value, ttl)
	})
}

func (s *safeStore) del(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	return s.call(ctx, "del", keys[0], func(ctx context.Context) error {
		_, err := s.store.Del(ctx, keys...)
		return err
	})
}

func (s *safeStore) ttl(ctx context.Context, key string) (time.Duration, bool) {
	var d time.Duration
	ok := s.call(ctx, "ttl", key, func(ctx context.Context) (err error) {
		d, err = s.store.TTL(ctx, key)
		return err
	})
	return d, ok
}

func (s *safeStore) sadd(ctx context.Context, key string, members ...string) bool {
	return s.call(ctx, "sadd", key, func(ctx context.Context) error {
		_, err := s.store.SAdd(ctx, key, members...)
		return err
	})
}

func (s *safeStore) sismember(ctx context.Context, key, member string) (bool, bool) {
	var is bool
	ok := s.call(ctx, "sismember", key, func(ctx context.Context) (err error) {
		is, err = s.store.SIsMember(ctx, key, member)
		return err
	})
	return is, ok
}
