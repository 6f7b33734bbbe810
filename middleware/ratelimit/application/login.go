package application

import (
	"context"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// LoginGuard conta falhas de autenticação por conta e por endereço de origem
// e escala para lockout da conta e bloqueio do endereço.
//
// O estado bloqueado é consultado pelo chamador antes de autenticar,
// separado do registro de uma nova falha.
type LoginGuard struct {
	base
	policy domain.LoginPolicy
}

func NewLoginGuard(opts Options, policy domain.LoginPolicy) *LoginGuard {
	return &LoginGuard{base: newBase(opts), policy: policy}
}

func failedKey(account string) string { return "login:failed:" + account }
func failedAddrKey(addr string) string { return "login:failed:ip:" + addr }
func lockedKey(account string) string { return "login:locked:" + account }
func blockedAddrKey(addr string) string { return "login:blocked:ip:" + addr }
func normalizeAccount(account string) string { return strings.ToLower(strings.TrimSpace(account)) }

// RecordFailure incrementa os dois contadores independentes. Cada contador
// tem sua janela; o flag de lockout tem TTL próprio.
func (g *LoginGuard) RecordFailure(ctx context.Context, accountID, sourceAddr string) domain.LoginAttempt {
	now := g.now()
	account := normalizeAccount(accountID)
	att := domain.LoginAttempt{ResetAt: now.Add(g.policy.FailureWindow)}

	if account != "" {
		n, ok := g.store.incrWithExpiry(ctx, failedKey(account), g.policy.FailureWindow)
		switch {
		case !ok:
			att.Degraded = true
		case n >= int64(g.policy.MaxAccountFailures):
			att.Attempts = n
			att.Blocked = true
			att.ResetAt = now.Add(g.policy.LockoutDuration)
			if !g.store.set(ctx, lockedKey(account), strconv.FormatInt(n, 10), g.policy.LockoutDuration) {
				att.Degraded = true
			}
			g.logger.Warn("account locked after failed logins", "account", account, "attempts", n, "until", att.ResetAt)
		default:
			att.Attempts = n
			if ttl, ok := g.store.ttl(ctx, failedKey(account)); ok && ttl > 0 {
				att.ResetAt = now.Add(ttl)
			}
		}
	}

	if sourceAddr != "" {
		n, ok := g.store.incrWithExpiry(ctx, failedAddrKey(sourceAddr), g.policy.FailureWindow)
		switch {
		case !ok:
			att.Degraded = true
		case n >= int64(g.policy.MaxSourceFailures):
			att.SourceAttempts = n
			att.SourceBlocked = true
			if !g.store.set(ctx, blockedAddrKey(sourceAddr), strconv.FormatInt(n, 10), g.policy.SourceBlockDuration) {
				att.Degraded = true
			}
			g.logger.Warn("source address blocked after failed logins", "source", sourceAddr, "attempts", n)
		default:
			att.SourceAttempts = n
		}
	}
	return att
}

// Reset limpa contador e lockout da conta (login bem-sucedido).
// O contador do endereço continua valendo.
func (g *LoginGuard) Reset(ctx context.Context, accountID string) {
	account := normalizeAccount(accountID)
	if account == "" {
		return
	}
	g.store.del(ctx, failedKey(account), lockedKey(account))
}

func (g *LoginGuard) IsAccountBlocked(ctx context.Context, accountID string) bool {
	account := normalizeAccount(accountID)
	if account == "" {
		return false
	}
	_, found, ok := g.store.get(ctx, lockedKey(account))
	return ok && found
}

func (g *LoginGuard) IsSourceBlocked(ctx context.Context, sourceAddr string) bool {
	if sourceAddr == "" {
		return false
	}
	_, found, ok := g.store.get(ctx, blockedAddrKey(sourceAddr))
	return ok && found
}

// AccountLockout é IsAccountBlocked com o instante em que o lockout expira.
func (g *LoginGuard) AccountLockout(ctx context.Context, accountID string) (bool, time.Time) {
	account := normalizeAccount(accountID)
	if account == "" {
		return false, time.Time{}
	}
	return g.flagUntil(ctx, lockedKey(account))
}

func (g *LoginGuard) SourceLockout(ctx context.Context, sourceAddr string) (bool, time.Time) {
	if sourceAddr == "" {
		return false, time.Time{}
	}
	return g.flagUntil(ctx, blockedAddrKey(sourceAddr))
}

func (g *LoginGuard) flagUntil(ctx context.Context, key string) (bool, time.Time) {
	ttl, ok := g.store.ttl(ctx, key)
	if !ok || ttl <= 0 {
		return false, time.Time{}
	}
	return true, g.now().Add(ttl)
}
