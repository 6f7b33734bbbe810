package infra

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalBuckets é um token bucket (x/time/rate) por chave, em processo,
// com cache por chave e limpeza periódica.
//
// Serve de pré-filtro barato para eventos de socket de alta frequência
// (ex: typing): descarta a rajada antes de qualquer round trip ao store.
// Não substitui as cotas compartilhadas.
type LocalBuckets struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketsOption func(*LocalBuckets)

func WithIdleTTL(d time.Duration) BucketsOption {
	return func(s *LocalBuckets) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketsOption {
	return func(s *LocalBuckets) { s.cleanupEvery = d }
}

func NewLocalBuckets(rps float64, burst int, opts ...BucketsOption) *LocalBuckets {
	s := &LocalBuckets{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalBuckets) RPS() float64 { return float64(s.rps) }
func (s *LocalBuckets) Burst() int   { return s.burst }

// Allow consome um token do bucket da chave.
func (s *LocalBuckets) Allow(key string) bool {
	return s.limiter(key).Allow()
}

// Forget descarta o bucket da chave (ex: conexão encerrada).
func (s *LocalBuckets) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *LocalBuckets) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LocalBuckets) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *LocalBuckets) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *LocalBuckets) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
