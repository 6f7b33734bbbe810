package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type GRPCOptions struct {
	Stats domain.StatsStore
	// StatsTimeout limita cada gravação de stats (padrão DefaultStatsTimeout).
	StatsTimeout time.Duration
	Logger       *slog.Logger
	// ActionFn mapeia o método gRPC para uma ação; padrão é write.
	ActionFn func(fullMethod string) domain.Action
	// OperationFn mapeia o método para uma cota global (opcional).
	OperationFn func(fullMethod string) string
	DefaultTier domain.Tier
}

// UnaryServerInterceptor aplica o gate a chamadas unárias. O subject vem do
// contexto (ContextWithSubject) e a origem do peer.
func UnaryServerInterceptor(d Decider, opts GRPCOptions) grpc.UnaryServerInterceptor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ActionFn == nil {
		opts.ActionFn = func(string) domain.Action { return domain.ActionWrite }
	}
	if opts.DefaultTier == "" {
		opts.DefaultTier = domain.TierFree
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d == nil {
			return handler(ctx, req)
		}

		subj := SubjectFromContext(ctx)
		tier := subj.Tier
		if tier == "" {
			tier = opts.DefaultTier
		}
		source := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			source = hostOnly(p.Addr.String())
		}
		r := domain.Request{
			Subject: subj.ID,
			Source:  source,
			Tier:    tier,
			Action:  opts.ActionFn(info.FullMethod),
		}
		if opts.OperationFn != nil {
			r.Operation = opts.OperationFn(info.FullMethod)
		}

		dec := d.Decide(ctx, r)
		recordStats(ctx, opts.Stats, opts.StatsTimeout, opts.Logger, domain.StatsEvent{
			Key:      r.Identity(),
			Allowed:  dec.Allowed,
			Reason:   dec.Reason,
			Degraded: dec.Degraded,
			Method:   "GRPC",
			Path:     info.FullMethod,
			At:       time.Now(),
		})

		md := metadata.Pairs(
			"x-ratelimit-limit", formatInt(dec.Limit),
			"x-ratelimit-remaining", formatInt(dec.Remaining),
			"x-ratelimit-reset", epochMillis(dec.ResetAt),
		)
		if !dec.Allowed {
			if secs := retryAfterSeconds(dec.RetryAfter); secs > 0 {
				md.Set("retry-after", formatInt(secs))
			}
		}
		// sem stream de transporte (ex: chamada direta em teste) SetHeader falha; ignoramos.
		_ = grpc.SetHeader(ctx, md)

		if dec.Allowed {
			return handler(ctx, req)
		}

		opts.Logger.Info("rpc denied",
			"method", info.FullMethod, "reason", dec.Reason, "subject", r.Identity())
		code := codes.ResourceExhausted
		if dec.Reason.Forbidden() {
			code = codes.PermissionDenied
		}
		return nil, status.Error(code, dec.Reason.Message())
	}
}
