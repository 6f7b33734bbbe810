package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// Conn é a conexão de socket vista pelo guard. O transporte (websocket,
// socket.io, etc.) fica do lado de quem implementa.
type Conn interface {
	ID() string
	RemoteAddr() string
	Subject() Subject
	Emit(event string, payload any) error
}

// EventHandler processa um evento recebido na conexão.
type EventHandler func(ctx context.Context, c Conn, payload []byte) error

// SocketError é o payload do evento "error" emitido quando um evento é descartado.
type SocketError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// LocalThrottle é um limitador por conexão em memória; *infra.LocalBuckets implementa.
type LocalThrottle interface {
	Allow(key string) bool
	Forget(key string)
}

// EventGuard aplica o gate aos eventos de socket. Eventos negados são
// descartados e o cliente recebe um evento "error".
type EventGuard struct {
	Decider Decider
	// Local corta floods de uma única conexão antes de tocar o store.
	Local LocalThrottle
	Stats domain.StatsStore
	// StatsTimeout limita cada gravação de stats (padrão DefaultStatsTimeout).
	StatsTimeout time.Duration
	Logger       *slog.Logger
	// Operation mapeia o nome do evento para uma cota global (opcional).
	Operation func(event string) string
	// DefaultTier é usado quando a conexão não tem tier.
	DefaultTier domain.Tier
}

const ErrorEvent = "error"

// Allow decide se o evento pode ser processado. Quando negado, já emitiu "error".
func (g *EventGuard) Allow(ctx context.Context, c Conn, event string, action domain.Action) bool {
	subj := c.Subject()
	tier := subj.Tier
	if tier == "" {
		tier = g.DefaultTier
	}
	req := domain.Request{
		Subject: subj.ID,
		Source:  hostOnly(c.RemoteAddr()),
		Tier:    tier,
		Action:  action,
	}
	if g.Operation != nil {
		req.Operation = g.Operation(event)
	}

	var dec domain.Decision
	if g.Local != nil && !g.Local.Allow(c.ID()) {
		dec = domain.Decision{Reason: domain.ReasonEventThrottled, RetryAfter: time.Second}
	} else if g.Decider != nil {
		dec = g.Decider.Decide(ctx, req)
	} else {
		dec = domain.Decision{Allowed: true}
	}

	recordStats(ctx, g.Stats, g.StatsTimeout, g.logger(), domain.StatsEvent{
		Key:      req.Identity(),
		Allowed:  dec.Allowed,
		Reason:   dec.Reason,
		Degraded: dec.Degraded,
		Method:   "EVENT",
		Path:     event,
		At:       time.Now(),
	})
	if dec.Allowed {
		return true
	}

	g.logger().Info("socket event dropped",
		"conn", c.ID(), "event", event, "reason", dec.Reason, "subject", req.Identity())
	if err := c.Emit(ErrorEvent, SocketError{
		Code:       string(dec.Reason),
		Message:    dec.Reason.Message(),
		RetryAfter: retryAfterSeconds(dec.RetryAfter),
	}); err != nil {
		g.logger().Warn("socket emit failed", "conn", c.ID(), "err", err)
	}
	return false
}

// Wrap devolve um handler que só chama h quando o evento é admitido.
func (g *EventGuard) Wrap(event string, action domain.Action, h EventHandler) EventHandler {
	return func(ctx context.Context, c Conn, payload []byte) error {
		if !g.Allow(ctx, c, event, action) {
			return nil
		}
		return h(ctx, c, payload)
	}
}

// Disconnect libera o estado local da conexão.
func (g *EventGuard) Disconnect(c Conn) {
	if g.Local != nil {
		g.Local.Forget(c.ID())
	}
}

func (g *EventGuard) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
