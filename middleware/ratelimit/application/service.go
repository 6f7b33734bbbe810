package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// Service é o gate: compõe blocklist, burst guard, login guard, limiter global
// e tiered/adaptativo numa única decisão por request ou evento de socket.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// É construído uma vez por processo com o counter store injetado.
type Service struct {
	Windowed  *WindowedLimiter
	Tiered    *TieredLimiter
	Adaptive  *AdaptiveLimiter
	Login     *LoginGuard
	Burst     *BurstGuard
	Global    *GlobalLimiter
	Blocklist *Blocklist

	base
	limits domain.Limits
}

// New valida store e limites e falha rápido em erro de configuração.
func New(opts Options, limits domain.Limits) (*Service, error) {
	if opts.Store == nil {
		return nil, domain.ErrNoStore
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	b := newBase(opts)
	windowed := &WindowedLimiter{base: b}
	tiered, err := NewTieredLimiter(windowed, limits.Policies)
	if err != nil {
		return nil, err
	}
	adaptive := NewAdaptiveLimiter(windowed, limits.Adaptive)
	if opts.Load != nil {
		tiered.WithLoad(adaptive, opts.Load)
	}

	return &Service{
		Windowed:  windowed,
		Tiered:    tiered,
		Adaptive:  adaptive,
		Login:     &LoginGuard{base: b, policy: limits.Login},
		Burst:     NewBurstGuard(windowed, limits.Burst),
		Global:    NewGlobalLimiter(windowed, limits.Global),
		Blocklist: &Blocklist{base: b},
		base:      b,
		limits:    limits,
	}, nil
}

func (s *Service) Limits() domain.Limits { return s.limits }

// Decide executa, em ordem: blocklist, flag de burst, lockouts (só auth),
// observação de burst (threshold escalado pela cota), teto global e cota tiered.
// Falhas do store deixam passar.
func (s *Service) Decide(ctx context.Context, req domain.Request) domain.Decision {
	now := s.now()
	id := req.Identity()
	if req.Tier == "" {
		req.Tier = domain.TierFree
	}
	if req.Action == "" {
		req.Action = domain.ActionRead
	}

	quota := s.Tiered.Resolve(req.Tier, req.Action)

	if s.Blocklist.IsBanned(ctx, req.Source) {
		// ban não expira: sem ResetAt nem RetryAfter
		return domain.Decision{Reason: domain.ReasonSourceBanned, Limit: s.Tiered.effectiveLimit(quota)}
	}

	if blocked, until := s.Burst.BlockedUntil(ctx, id); blocked {
		return s.deny(domain.ReasonBurstBlocked, until, now, quota)
	}

	if req.Auth {
		if locked, until := s.Login.AccountLockout(ctx, req.Account); locked {
			return s.deny(domain.ReasonAccountLocked, until, now, quota)
		}
		if blocked, until := s.Login.SourceLockout(ctx, req.Source); blocked {
			return s.deny(domain.ReasonSourceBlocked, until, now, quota)
		}
	}

	obs := s.Burst.ObserveFor(ctx, id, quota)
	if obs.IsBurst {
		until := s.Burst.ApplyProtection(ctx, id, obs.Level)
		return s.deny(domain.ReasonBurstBlocked, until, now, quota)
	}

	if req.Operation != "" {
		if res, ok := s.Global.CheckConfigured(ctx, req.Operation); ok && !res.Allowed {
			return fromResult(res, domain.ReasonGlobalQuotaExceeded, now)
		}
	}

	res := s.Tiered.checkPolicy(ctx, req.Subject, req.Source, req.Tier, req.Action, quota)
	dec := fromResult(res, domain.ReasonQuotaExceeded, now)
	dec.Degraded = dec.Degraded || obs.Degraded
	return dec
}

// deny monta negações que não vêm da cota; Limit ainda reflete a política do
// sujeito para os headers, com Remaining 0 até o fim do bloqueio.
func (s *Service) deny(reason domain.Reason, until, now time.Time, quota domain.Policy) domain.Decision {
	dec := domain.Deny(reason, until, now)
	dec.Limit = s.Tiered.effectiveLimit(quota)
	return dec
}

func fromResult(res domain.Result, reason domain.Reason, now time.Time) domain.Decision {
	dec := domain.Decision{
		Allowed:   res.Allowed,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		Degraded:  res.Degraded,
	}
	if !res.Allowed {
		dec.Reason = reason
		dec.RetryAfter = domain.RetryAfter(res.ResetAt, now)
	}
	return dec
}
