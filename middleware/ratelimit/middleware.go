package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

// Decider é o gate; *application.Service implementa.
type Decider interface {
	Decide(ctx context.Context, req domain.Request) domain.Decision
}

type Options struct {
	Decider Decider
	Stats   domain.StatsStore
	// StatsTimeout limita cada gravação de stats (padrão DefaultStatsTimeout).
	StatsTimeout       time.Duration
	Logger             *slog.Logger
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	// SubjectFn retorna o usuário autenticado; padrão lê do contexto.
	SubjectFn func(r *http.Request) Subject
	ActionFn  func(r *http.Request) domain.Action
	// OperationFn escolhe a cota global; nil ou "" desativa.
	OperationFn func(r *http.Request) string
	DefaultTier domain.Tier
}

func (o *Options) defaults() {
	if o.KeyFn == nil {
		o.KeyFn = DefaultKeyFunc(o.KeyHeader, o.TrustXForwardedFor)
	}
	if o.SubjectFn == nil {
		o.SubjectFn = func(r *http.Request) Subject { return SubjectFromContext(r.Context()) }
	}
	if o.ActionFn == nil {
		o.ActionFn = ActionByMethod
	}
	if o.DefaultTier == "" {
		o.DefaultTier = domain.TierFree
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func (o Options) buildRequest(r *http.Request) domain.Request {
	subj := o.SubjectFn(r)
	tier := subj.Tier
	if tier == "" {
		tier = o.DefaultTier
	}
	req := domain.Request{
		Subject: subj.ID,
		Source:  o.KeyFn(r),
		Tier:    tier,
		Action:  o.ActionFn(r),
	}
	if o.OperationFn != nil {
		req.Operation = o.OperationFn(r)
	}
	return req
}

// gate decide, grava stats, escreve headers e, se negado, a resposta de erro.
// Retorna true quando a request pode seguir.
func (o Options) gate(w http.ResponseWriter, r *http.Request, req domain.Request) bool {
	dec := o.Decider.Decide(r.Context(), req)

	recordStats(r.Context(), o.Stats, o.StatsTimeout, o.Logger, domain.StatsEvent{
		Key:      req.Identity(),
		Allowed:  dec.Allowed,
		Reason:   dec.Reason,
		Degraded: dec.Degraded,
		Method:   r.Method,
		Path:     r.URL.Path,
		At:       time.Now(),
	})

	setRateLimitHeaders(w.Header(), dec)
	if dec.Allowed {
		return true
	}

	o.Logger.Info("request denied",
		"request_id", requestID(w, r),
		"reason", dec.Reason,
		"subject", req.Identity(),
		"source", req.Source,
		"method", r.Method,
		"path", r.URL.Path,
		"retry_after", dec.RetryAfter)
	writeDenied(w, dec)
	return false
}

// Middleware aplica o gate antes do handler de negócio.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Decider == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	opts.defaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.gate(w, r, opts.buildRequest(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestID reaproveita X-Request-ID ou gera um novo e o devolve na resposta.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	return id
}
