package application

import (
	"context"
	"strconv"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// WindowedLimiter é o contador de janela fixa sobre o counter store.
//
// Na virada de um bucket podem passar até 2x limit eventos; é a aproximação
// aceita de janela fixa, não um bug.
type WindowedLimiter struct {
	base
}

func NewWindowedLimiter(opts Options) *WindowedLimiter {
	return &WindowedLimiter{base: newBase(opts)}
}

// Check conta o evento (mesmo se negado) e reporta a cota restante.
// Falha do store vira {Allowed:true, Remaining:0, ResetAt:now}.
func (l *WindowedLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) domain.Result {
	now := l.now()

	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1000
	}
	bucket := now.UnixMilli() / windowMs
	resetAt := time.UnixMilli((bucket + 1) * windowMs)
	windowKey := key + ":" + strconv.FormatInt(bucket, 10)

	// TTL cobre exatamente o resto do bucket
	count, ok := l.store.incrWithExpiry(ctx, windowKey, resetAt.Sub(now))
	if !ok {
		return domain.Result{Allowed: true, Limit: limit, Remaining: 0, ResetAt: now, Degraded: true}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.Result{
		Allowed:   count <= int64(limit),
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
