package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowedEvent(key string) domain.StatsEvent {
	return domain.StatsEvent{Key: key, Allowed: true, Method: "GET", Path: "/messages"}
}

func deniedEvent(key string, reason domain.Reason) domain.StatsEvent {
	return domain.StatsEvent{Key: key, Reason: reason, Method: "GET", Path: "/messages"}
}

func TestMemoryStatsStore_Aggregates(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, allowedEvent("u1"))
	_ = s.Record(ctx, deniedEvent("u1", domain.ReasonQuotaExceeded))
	ev := allowedEvent("u2")
	ev.Degraded = true
	_ = s.Record(ctx, ev)

	assert.Equal(t, Counters{Allowed: 2, Denied: 1, Degraded: 1}, s.Total())
	assert.Equal(t, int64(1), s.ByRoute()["GET /messages"].Denied)
	assert.Equal(t, int64(1), s.ByReason()[domain.ReasonQuotaExceeded])
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByKey()["u1"])
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), allowedEvent("u1"))
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("st:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	ev := allowedEvent("u1")
	ev.At = at
	require.NoError(t, s.Record(ctx, ev))
	ev = deniedEvent("u1", domain.ReasonBurstBlocked)
	ev.At = at
	ev.Degraded = true
	require.NoError(t, s.Record(ctx, ev))

	assert.Equal(t, "1", mr.HGet("st:total", "allowed"))
	assert.Equal(t, "1", mr.HGet("st:total", "denied"))
	assert.Equal(t, "1", mr.HGet("st:total", "degraded"))
	assert.Equal(t, "1", mr.HGet("st:reason", "burst_blocked"))
	assert.Equal(t, "1", mr.HGet("st:minute:202603040506", "allowed"))
	assert.Equal(t, "1", mr.HGet("st:route", "GET /messages:denied"))
	assert.Equal(t, "1", mr.HGet("st:key:u1", "denied"))
	assert.Equal(t, time.Hour, mr.TTL("st:key:u1"))
}

func TestRedisStatsStore_NoBucket(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket("none"))

	ev := allowedEvent("u1")
	ev.At = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.Record(context.Background(), ev))

	assert.False(t, mr.Exists("admission:stats:minute:202603040506"))
	assert.False(t, mr.Exists("admission:stats:key:u1"))
	assert.Equal(t, "1", mr.HGet("admission:stats:total", "allowed"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPrometheusStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusStats(reg)
	require.NoError(t, err)
	ctx := context.Background()

	_ = s.Record(ctx, allowedEvent("u1"))
	_ = s.Record(ctx, allowedEvent("u2"))
	_ = s.Record(ctx, deniedEvent("u1", domain.ReasonQuotaExceeded))
	s.StoreError("incr", errors.New("boom"))

	assert.Equal(t, 2.0, counterValue(t, reg, "admission_decisions_total",
		map[string]string{"outcome": "allowed", "reason": "", "degraded": "false"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "admission_decisions_total",
		map[string]string{"outcome": "denied", "reason": "quota_exceeded"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "admission_store_errors_total",
		map[string]string{"op": "incr"}))

	// registrar de novo no mesmo registry falha
	_, err = NewPrometheusStats(reg)
	assert.Error(t, err)
}

type errStats struct{ err error }

func (s errStats) Record(context.Context, domain.StatsEvent) error { return s.err }

func TestMultiStats_FansOutAndJoinsErrors(t *testing.T) {
	mem := NewMemoryStatsStore()
	boom := errors.New("boom")
	m := MultiStats{mem, nil, errStats{err: boom}}

	err := m.Record(context.Background(), allowedEvent("u1"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), mem.Total().Allowed)

	assert.NoError(t, MultiStats{mem}.Record(context.Background(), allowedEvent("u1")))
}

func TestRedisStatsStore_Snapshot(t *testing.T) {
	_, rdb := newMiniRedis(t)
	a := NewRedisStatsStore(rdb)
	b := NewRedisStatsStore(rdb)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, allowedEvent("u1")))
	require.NoError(t, b.Record(ctx, deniedEvent("u2", domain.ReasonQuotaExceeded)))
	require.NoError(t, b.Record(ctx, deniedEvent("u2", domain.ReasonQuotaExceeded)))

	total, byReason, err := a.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{Allowed: 1, Denied: 2}, total)
	assert.Equal(t, map[domain.Reason]int64{domain.ReasonQuotaExceeded: 2}, byReason)
}
