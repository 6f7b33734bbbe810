package ratelimit

import (
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Service permite compartilhar o pool com o limiter adaptativo (LoadSource).
	// Se nil, um pool de Max vagas é criado.
	Service        *application.ConcurrencyService
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// NewConcurrency cria o serviço que ConcurrencyMiddleware usa; retorna nil se max <= 0.
func NewConcurrency(max int, acquireTimeout time.Duration) *application.ConcurrencyService {
	if max <= 0 {
		return nil
	}
	return application.NewConcurrencyService(infra.NewChanPool(max), acquireTimeout)
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	svc := opts.Service
	if svc == nil {
		svc = NewConcurrency(opts.Max, opts.AcquireTimeout)
	}
	if svc == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
