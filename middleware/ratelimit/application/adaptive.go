package application

import (
	"context"
	"math"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// AdaptiveLimiter reduz a cota base conforme a carga antes da janela fixa.
type AdaptiveLimiter struct {
	windowed *WindowedLimiter
	policy   domain.AdaptivePolicy
}

func NewAdaptiveLimiter(windowed *WindowedLimiter, policy domain.AdaptivePolicy) *AdaptiveLimiter {
	return &AdaptiveLimiter{windowed: windowed, policy: policy.Normalize()}
}

// EffectiveLimit = floor(base × multiplier(load)), nunca abaixo de 1 se base > 0.
func (l *AdaptiveLimiter) EffectiveLimit(baseLimit int, loadFactor float64) int {
	if baseLimit <= 0 {
		return 0
	}
	load := math.Min(math.Max(loadFactor, 0), 1)
	if math.IsNaN(loadFactor) {
		load = 0
	}
	// epsilon evita 69.999.. virar 69
	eff := int(math.Floor(float64(baseLimit)*l.policy.Multiplier(load) + 1e-9))
	if eff < 1 {
		eff = 1
	}
	return eff
}

func (l *AdaptiveLimiter) Check(ctx context.Context, key string, baseLimit int, window time.Duration, loadFactor float64) domain.Result {
	return l.windowed.Check(ctx, key, l.EffectiveLimit(baseLimit, loadFactor), window)
}
