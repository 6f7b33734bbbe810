package application

import (
	"context"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita requests em voo com timeout de aquisição, sem
// saber nada sobre HTTP. A ocupação do pool também serve de sinal de carga
// para o limiter adaptativo (implementa domain.LoadSource).
type ConcurrencyService struct {
	pool           domain.SlotPool
	acquireTimeout time.Duration
	rejected       atomic.Int64
}

func NewConcurrencyService(pool domain.SlotPool, acquireTimeout time.Duration) *ConcurrencyService {
	return &ConcurrencyService{pool: pool, acquireTimeout: acquireTimeout}
}

// Acquire tenta adquirir uma vaga.
// - Se acquireTimeout <= 0, espera até o ctx cancelar.
// - Se acquireTimeout > 0, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s *ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s == nil || s.pool == nil {
		return func() {}, true
	}

	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	release, ok := s.pool.Acquire(ctx)
	if !ok {
		s.rejected.Add(1)
	}
	return release, ok
}

// LoadFactor é a fração de vagas ocupadas, em [0,1].
func (s *ConcurrencyService) LoadFactor() float64 {
	if s == nil || s.pool == nil || s.pool.Capacity() <= 0 {
		return 0
	}
	load := float64(s.pool.InUse()) / float64(s.pool.Capacity())
	if load > 1 {
		return 1
	}
	return load
}

func (s *ConcurrencyService) Rejected() int64 {
	if s == nil {
		return 0
	}
	return s.rejected.Load()
}
