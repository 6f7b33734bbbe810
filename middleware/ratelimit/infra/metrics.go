package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats exporta decisões do gate e falhas do counter store.
// Implementa domain.StatsStore; StoreError é o hook OnStoreError do application.
type PrometheusStats struct {
	decisions   *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

var _ domain.StatsStore = (*PrometheusStats)(nil)

// NewPrometheusStats registra os coletores em reg (use prometheus.NewRegistry em testes).
func NewPrometheusStats(reg prometheus.Registerer) (*PrometheusStats, error) {
	s := &PrometheusStats{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Name:      "decisions_total",
			Help:      "Gate decisions by outcome and deny reason.",
		}, []string{"outcome", "reason", "degraded"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Name:      "store_errors_total",
			Help:      "Counter store failures handled as fail-open, by operation.",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.storeErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	degraded := "false"
	if ev.Degraded {
		degraded = "true"
	}
	s.decisions.WithLabelValues(outcome, string(ev.Reason), degraded).Inc()
	return nil
}

func (s *PrometheusStats) StoreError(op string, _ error) {
	s.storeErrors.WithLabelValues(op).Inc()
}
