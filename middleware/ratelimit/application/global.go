package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const globalPrefix = "global:"

// GlobalLimiter aplica a janela fixa a chaves agregadas do serviço,
// independente de quantos sujeitos distintos contribuem.
type GlobalLimiter struct {
	windowed *WindowedLimiter
	caps     map[string]domain.Policy
}

func NewGlobalLimiter(windowed *WindowedLimiter, caps map[string]domain.Policy) *GlobalLimiter {
	return &GlobalLimiter{windowed: windowed, caps: caps}
}

func (l *GlobalLimiter) Check(ctx context.Context, operation string, limit int, window time.Duration) domain.Result {
	return l.windowed.Check(ctx, globalPrefix+operation, limit, window)
}

// CheckConfigured usa o teto configurado; ok=false quando a operação não tem teto.
func (l *GlobalLimiter) CheckConfigured(ctx context.Context, operation string) (domain.Result, bool) {
	p, ok := l.caps[operation]
	if !ok {
		return domain.Result{}, false
	}
	return l.Check(ctx, operation, p.Limit, p.Window()), true
}
