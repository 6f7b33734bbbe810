package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// Exemplo: injetando o gate diretamente no seu webserver (sem proxy),
	// com store em memória. Em produção use infra.NewRedisStore.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryStore()
	store.StartJanitor(ctx)
	stats := infra.NewMemoryStatsStore()

	conc := ratelimit.NewConcurrency(50, 2*time.Second)
	svc, err := application.New(application.Options{
		Store:  store,
		Logger: logger,
		Load:   conc,
	}, domain.DefaultLimits())
	if err != nil {
		logger.Error("invalid limits", "error", err)
		os.Exit(1)
	}

	gate := ratelimit.Options{Decider: svc, Stats: stats, Logger: logger, TrustXForwardedFor: true}

	local := infra.NewLocalBuckets(5, 10)
	local.StartJanitor(ctx)
	events := &ratelimit.EventGuard{Decider: svc, Local: local, Stats: stats, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(demoAuth)
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Service: conc}))

	r.With(ratelimit.LoginMiddleware(ratelimit.LoginOptions{
		Options: gate,
		Guard:   svc.Login,
	})).Post("/auth/login", handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(gate))
		r.Get("/messages", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"messages": []string{}})
		})
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		})
		r.Delete("/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/ws", wsHandler(events, logger))
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"total":    stats.Total(),
			"byRoute":  stats.ByRoute(),
			"byReason": stats.ByReason(),
		})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	if grpcAddr := os.Getenv("GRPC_ADDR"); grpcAddr != "" {
		gs := grpc.NewServer(grpc.UnaryInterceptor(ratelimit.UnaryServerInterceptor(svc, ratelimit.GRPCOptions{
			Stats:  stats,
			Logger: logger,
			ActionFn: func(string) domain.Action {
				return domain.ActionRead
			},
		})))
		healthpb.RegisterHealthServer(gs, health.NewServer())

		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Error("grpc listen", "error", err)
			os.Exit(1)
		}
		go func() {
			<-ctx.Done()
			gs.GracefulStop()
		}()
		go func() {
			logger.Info("grpc listening", "addr", grpcAddr)
			if err := gs.Serve(lis); err != nil {
				logger.Error("grpc server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// demoAuth simula a camada de autenticação: "Authorization: Bearer <user>[:<tier>]".
// Não valida nada; serve só para alimentar subject e tier do gate.
func demoAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && token != "" {
			user, tier, _ := strings.Cut(token, ":")
			r = r.WithContext(ratelimit.ContextWithSubject(r.Context(), ratelimit.Subject{
				ID:   user,
				Tier: domain.Tier(tier),
			}))
		}
		next.ServeHTTP(w, r)
	})
}

// handleLogin aceita qualquer conta com a senha "secret".
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
