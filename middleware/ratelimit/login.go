package ratelimit

import (
	"context"
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

// LoginRecorder registra o resultado de uma autenticação;
// *application.LoginGuard implementa.
type LoginRecorder interface {
	RecordFailure(ctx context.Context, accountID, sourceAddr string) domain.LoginAttempt
	Reset(ctx context.Context, accountID string)
}

type LoginOptions struct {
	Options
	Guard LoginRecorder
	// AccountFn extrai a conta sendo autenticada; padrão lê o header X-Account-ID.
	AccountFn func(r *http.Request) string
	// Operation é a cota global das rotas de auth (opcional).
	Operation string
}

// LoginMiddleware protege endpoints de autenticação: consulta lockouts antes
// de autenticar e, pelo status do handler, registra falha (401/403) ou
// limpa o contador (2xx).
func LoginMiddleware(opts LoginOptions) func(next http.Handler) http.Handler {
	if opts.Decider == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	opts.defaults()
	if opts.AccountFn == nil {
		opts.AccountFn = func(r *http.Request) string { return strings.TrimSpace(r.Header.Get("X-Account-ID")) }
	}
	if opts.Operation != "" {
		opts.OperationFn = func(*http.Request) string { return opts.Operation }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := opts.buildRequest(r)
			req.Auth = true
			req.Account = opts.AccountFn(r)
			req.Action = domain.ActionWrite

			if !opts.gate(w, r, req) {
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if opts.Guard == nil {
				return
			}
			switch {
			case sw.status == http.StatusUnauthorized || sw.status == http.StatusForbidden:
				att := opts.Guard.RecordFailure(r.Context(), req.Account, req.Source)
				if att.Blocked || att.SourceBlocked {
					opts.Logger.Warn("login escalation",
						"account", req.Account, "source", req.Source,
						"attempts", att.Attempts, "source_attempts", att.SourceAttempts,
						"reset_at", att.ResetAt)
				}
			case sw.status >= 200 && sw.status < 300:
				opts.Guard.Reset(r.Context(), req.Account)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
