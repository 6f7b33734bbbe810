package application

import (
	"context"
	"log/slog"

	"admission-gateway/middleware/ratelimit/domain"
)

// TieredLimiter resolve a política tier × action e delega para a janela fixa.
type TieredLimiter struct {
	windowed *WindowedLimiter
	policies domain.PolicyTable
	fallback domain.Policy
	logger   *slog.Logger

	adaptive *AdaptiveLimiter
	load     domain.LoadSource
}

// NewTieredLimiter falha rápido quando a tabela está ausente ou malformada.
func NewTieredLimiter(windowed *WindowedLimiter, policies domain.PolicyTable) (*TieredLimiter, error) {
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	fallback, _ := policies.MostRestrictive()
	return &TieredLimiter{
		windowed: windowed,
		policies: policies,
		fallback: fallback,
		logger:   windowed.logger,
	}, nil
}

// WithLoad escala o limite de toda política pelo fator de carga atual.
func (l *TieredLimiter) WithLoad(adaptive *AdaptiveLimiter, load domain.LoadSource) *TieredLimiter {
	l.adaptive = adaptive
	l.load = load
	return l
}

// Resolve devolve a política configurada. Combinação desconhecida é erro de
// configuração: cai para a política mais restritiva (fail closed).
func (l *TieredLimiter) Resolve(tier domain.Tier, action domain.Action) domain.Policy {
	if p, ok := l.policies.Lookup(tier, action); ok {
		return p
	}
	l.logger.Error("no policy for tier/action, using most restrictive",
		"tier", tier, "action", action, "error", domain.ErrInvalidPolicy,
		"limit", l.fallback.Limit, "window_seconds", l.fallback.WindowSeconds)
	return l.fallback
}

// Check usa subjectID ou, sem sujeito autenticado, fallbackID (ex: IP).
func (l *TieredLimiter) Check(ctx context.Context, subjectID, fallbackID string, tier domain.Tier, action domain.Action) domain.Result {
	return l.checkPolicy(ctx, subjectID, fallbackID, tier, action, l.Resolve(tier, action))
}

func (l *TieredLimiter) checkPolicy(ctx context.Context, subjectID, fallbackID string, tier domain.Tier, action domain.Action, p domain.Policy) domain.Result {
	key := domain.RateKey{Subject: subjectOrFallback(subjectID, fallbackID), Tier: tier, Action: action}.String()

	if l.adaptive != nil && l.load != nil {
		return l.adaptive.Check(ctx, key, p.Limit, p.Window(), l.load.LoadFactor())
	}
	return l.windowed.Check(ctx, key, p.Limit, p.Window())
}

// effectiveLimit é o limite de p após o ajuste por carga, quando ativo.
func (l *TieredLimiter) effectiveLimit(p domain.Policy) int {
	if l.adaptive != nil && l.load != nil {
		return l.adaptive.EffectiveLimit(p.Limit, l.load.LoadFactor())
	}
	return p.Limit
}

func subjectOrFallback(subject, fallback string) string {
	if subject != "" {
		return subject
	}
	if fallback != "" {
		return fallback
	}
	return "unknown"
}
