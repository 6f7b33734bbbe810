package infra

import (
	"context"
	"strconv"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// MemoryStore é um counter store em processo, com TTL por chave.
// Útil para testes e desenvolvimento; não coordena múltiplos processos.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	values  map[string]memEntry
	sets    map[string]map[string]struct{}
	cleanup time.Duration
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero = não expira
}

var _ domain.CounterStore = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithMemoryCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanup = d }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		now:     time.Now,
		values:  make(map[string]memEntry),
		sets:    make(map[string]map[string]struct{}),
		cleanup: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup devolve a entrada viva, removendo a expirada. Exige s.mu.
func (s *MemoryStore) lookup(key string, now time.Time) (memEntry, bool) {
	e, ok := s.values[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(s.values, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) incr(key string, ttl time.Duration, setTTL bool) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, _ := s.lookup(key, now)
	var n int64
	if e.value != "" {
		var err error
		n, err = strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	if setTTL && (n == 1 || e.expiresAt.IsZero()) {
		e.expiresAt = now.Add(ttl)
	}
	s.values[key] = e
	return n, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	return s.incr(key, 0, false)
}

func (s *MemoryStore) IncrWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	return s.incr(key, ttl, true)
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key, now)
	if !ok {
		return false, nil
	}
	e.expiresAt = now.Add(ttl)
	s.values[key] = e
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key, now)
	return e.value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.values[key] = e
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := s.lookup(key, now); ok {
			delete(s.values, key)
			n++
		}
		if _, ok := s.sets[key]; ok {
			delete(s.sets, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key, now)
	if !ok || e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	var added int64
	for _, m := range members {
		if _, dup := set[m]; !dup {
			set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sets[key][member]
	return ok, nil
}

// Cleanup remove as chaves expiradas.
func (s *MemoryStore) Cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.values {
		s.lookup(k, now)
	}
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanup, s.Cleanup)
}
