package application

import (
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// Options é a injeção de dependências compartilhada por todos os limiters.
// Um único conjunto é construído por processo (ver New).
type Options struct {
	Store domain.CounterStore
	// StoreTimeout limita cada round trip ao store (padrão 50ms).
	StoreTimeout time.Duration
	Logger       *slog.Logger
	// OnStoreError é chamado a cada falha do store, depois do log (ex: métricas).
	OnStoreError func(op string, err error)
	// Now permite relógio fake em testes.
	Now func() time.Time
	// Load alimenta o limiter adaptativo; nil desativa o ajuste por carga.
	Load domain.LoadSource
}

type base struct {
	store  *safeStore
	logger *slog.Logger
	now    func() time.Time
}

func newBase(opts Options) base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return base{
		store:  newSafeStore(opts.Store, opts.StoreTimeout, logger, opts.OnStoreError),
		logger: logger,
		now:    now,
	}
}
