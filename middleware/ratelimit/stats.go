package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// DefaultStatsTimeout limita a gravação de stats no caminho da request,
// igual ao timeout do counter store.
const DefaultStatsTimeout = 50 * time.Millisecond

// recordStats grava ev com prazo próprio. Stats são best-effort: erro ou
// timeout só gera log, a request segue.
func recordStats(ctx context.Context, stats domain.StatsStore, timeout time.Duration, logger *slog.Logger, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	if timeout <= 0 {
		timeout = DefaultStatsTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := stats.Record(cctx, ev); err != nil && logger != nil {
		logger.Warn("stats record failed", "key", ev.Key, "error", err)
	}
}
