package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg, err := readConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)
	if err != nil {
		fatal(logger, "config error", err)
	}

	if err := run(cfg, logger); err != nil {
		fatal(logger, "gateway stopped", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func run(cfg config, logger *slog.Logger) error {
	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return errors.New("invalid UPSTREAM_URL: " + err.Error())
	}

	limits := domain.DefaultLimits()
	if cfg.limitsFile != "" {
		if limits, err = infra.LoadLimits(cfg.limitsFile); err != nil {
			return err
		}
	}
	if cfg.globalOperation != "" {
		if _, ok := limits.Global[cfg.globalOperation]; !ok {
			logger.Warn("GLOBAL_OPERATION has no cap in limits file, ignoring", "operation", cfg.globalOperation)
			cfg.globalOperation = ""
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := infra.NewPrometheusStats(reg)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.storeBackend == "redis" || cfg.rateStatsEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			// sem Redis o gate faz fail-open; seguimos subindo
			logger.Warn("redis ping failed, decisions will fail open until it recovers", "addr", cfg.redisAddr, "error", err)
		}
	}

	var store domain.CounterStore
	if cfg.storeBackend == "redis" {
		store = infra.NewRedisStore(rdb, infra.WithKeyPrefix(cfg.redisPrefix))
	} else {
		mem := infra.NewMemoryStore()
		mem.StartJanitor(ctx)
		store = mem
	}

	stats := infra.MultiStats{prom}
	var redisStats *infra.RedisStatsStore
	if cfg.rateStatsEnabled {
		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		stats = append(stats, redisStats)
	}

	conc := ratelimit.NewConcurrency(cfg.concurrencyMax, cfg.concurrencyTimeout)
	opts := application.Options{
		Store:        store,
		StoreTimeout: cfg.storeTimeout,
		Logger:       logger,
		OnStoreError: prom.StoreError,
	}
	if cfg.adaptive && conc != nil {
		opts.Load = conc
	}
	svc, err := application.New(opts, limits)
	if err != nil {
		return err
	}
	if len(cfg.blocklist) > 0 && !svc.Blocklist.Ban(ctx, cfg.blocklist...) {
		logger.Warn("could not seed blocklist", "count", len(cfg.blocklist))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", "error", err, "path", r.URL.Path)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Service:      conc,
		RejectStatus: http.StatusServiceUnavailable,
	})(h)
	if cfg.rateEnabled {
		mwOpts := ratelimit.Options{
			Decider:            svc,
			Stats:              stats,
			StatsTimeout:       cfg.storeTimeout,
			Logger:             logger,
			KeyHeader:          cfg.keyHeader,
			TrustXForwardedFor: cfg.trustXFF,
		}
		if op := cfg.globalOperation; op != "" {
			mwOpts.OperationFn = func(*http.Request) string { return op }
		}
		h = ratelimit.Middleware(mwOpts)(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening", "addr", cfg.listenAddr, "upstream", target.String())
	logger.Info("admission",
		"enabled", cfg.rateEnabled, "store", cfg.storeBackend, "store_timeout", cfg.storeTimeout,
		"limits_file", cfg.limitsFile, "global_operation", cfg.globalOperation,
		"adaptive", opts.Load != nil, "key_header", cfg.keyHeader, "trust_xff", cfg.trustXFF)
	logger.Info("rate-stats",
		"redis", cfg.rateStatsEnabled, "bucket", cfg.rateStatsBucket, "ttl", cfg.rateStatsTTL, "track_keys", cfg.rateStatsTrackKeys)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquire_timeout", cfg.concurrencyTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(gctx, srv) })
	if cfg.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
		if redisStats != nil {
			mux.HandleFunc("/stats", statsHandler(redisStats))
		}
		metricsSrv := &http.Server{Addr: cfg.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		logger.Info("metrics listening", "addr", cfg.metricsAddr)
		g.Go(func() error { return serve(gctx, metricsSrv) })
	}
	return g.Wait()
}

// statsHandler expõe os agregados do Redis, somados entre instâncias.
func statsHandler(stats *infra.RedisStatsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, byReason, err := stats.Snapshot(r.Context())
		if err != nil {
			http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"total": total, "byReason": byReason})
	}
}

// serve roda srv até ctx encerrar e então faz shutdown gracioso.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
