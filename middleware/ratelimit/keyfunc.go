package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

// KeyFunc extrai o endereço de origem da request.
type KeyFunc func(r *http.Request) string

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		// fallback: RemoteAddr
		return hostOnly(r.RemoteAddr)
	}
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// Subject é o usuário autenticado, colocado no contexto pelo middleware de auth.
type Subject struct {
	ID   string
	Tier domain.Tier
}

type subjectKey struct{}

// ContextWithSubject é chamado pela camada de autenticação (fora deste pacote)
// depois de validar o token.
func ContextWithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

func SubjectFromContext(ctx context.Context) Subject {
	s, _ := ctx.Value(subjectKey{}).(Subject)
	return s
}

// ActionByMethod: GET/HEAD/OPTIONS → read, DELETE → delete, resto → write.
func ActionByMethod(r *http.Request) domain.Action {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return domain.ActionRead
	case http.MethodDelete:
		return domain.ActionDelete
	default:
		return domain.ActionWrite
	}
}
