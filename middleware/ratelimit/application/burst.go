package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// BurstGuard detecta picos em janela curta e aplica bloqueios escalonados.
//
// O flag de bloqueio é independente da cota normal: um sujeito pode estar
// dentro da cota e ainda assim bloqueado por um pico recente.
type BurstGuard struct {
	base
	windowed *WindowedLimiter
	policy   domain.BurstPolicy
}

func NewBurstGuard(windowed *WindowedLimiter, policy domain.BurstPolicy) *BurstGuard {
	return &BurstGuard{base: windowed.base, windowed: windowed, policy: policy}
}

func burstKey(key string) string      { return "burst:" + key }
func burstBlockKey(key string) string { return "burst:block:" + key }

// Observe conta o evento na janela curta e classifica a severidade.
func (g *BurstGuard) Observe(ctx context.Context, key string, threshold int, window time.Duration) domain.BurstObservation {
	res := g.windowed.Check(ctx, burstKey(key), threshold, window)
	if res.Degraded {
		return domain.BurstObservation{Degraded: true}
	}
	level := domain.ClassifyBurst(res.Count, threshold)
	return domain.BurstObservation{
		RequestCount: res.Count,
		IsBurst:      level != domain.BurstNone,
		Level:        level,
	}
}

// ObserveDefault usa threshold e janela da política configurada.
func (g *BurstGuard) ObserveDefault(ctx context.Context, key string) domain.BurstObservation {
	return g.Observe(ctx, key, g.policy.Threshold, g.policy.Window)
}

// ObserveFor usa o threshold ajustado à cota do sujeito (ver BurstPolicy.ThresholdFor).
func (g *BurstGuard) ObserveFor(ctx context.Context, key string, quota domain.Policy) domain.BurstObservation {
	return g.Observe(ctx, key, g.policy.ThresholdFor(quota), g.policy.Window)
}

// ApplyProtection grava o flag de bloqueio com TTL determinado só pelo nível.
// Retorna o fim do bloqueio (zero para BurstNone).
func (g *BurstGuard) ApplyProtection(ctx context.Context, key string, level domain.BurstLevel) time.Time {
	d := g.policy.BlockDuration(level)
	if level == domain.BurstNone || d <= 0 {
		return time.Time{}
	}
	until := g.now().Add(d)
	g.store.set(ctx, burstBlockKey(key), level.String(), d)
	g.logger.Warn("burst protection applied", "key", key, "level", level.String(), "until", until)
	return until
}

func (g *BurstGuard) IsBlocked(ctx context.Context, key string) bool {
	_, found, ok := g.store.get(ctx, burstBlockKey(key))
	return ok && found
}

// BlockedUntil é IsBlocked com o instante em que o bloqueio expira.
func (g *BurstGuard) BlockedUntil(ctx context.Context, key string) (bool, time.Time) {
	ttl, ok := g.store.ttl(ctx, burstBlockKey(key))
	if !ok || ttl <= 0 {
		return false, time.Time{}
	}
	return true, g.now().Add(ttl)
}

// BlockedLevel lê o nível gravado no flag de bloqueio.
func (g *BurstGuard) BlockedLevel(ctx context.Context, key string) domain.BurstLevel {
	v, found, ok := g.store.get(ctx, burstBlockKey(key))
	if !ok || !found {
		return domain.BurstNone
	}
	level, _ := domain.ParseBurstLevel(v)
	return level
}
