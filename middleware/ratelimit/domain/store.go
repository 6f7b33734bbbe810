package domain

import (
	"context"
	"time"
)

// CounterStore é a fronteira com o key-value compartilhado (Redis em produção).
//
// Toda coordenação entre processos passa por aqui. Cada método é um único
// round trip e deve ser seguro para retry do ponto de vista dos limiters.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	// IncrWithExpiry incrementa e aplica ttl apenas quando a chave é nova
	// (ou está sem TTL), em um único round trip.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get retorna ok=false quando a chave não existe.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// TTL retorna um valor negativo quando a chave não existe ou não expira.
	TTL(ctx context.Context, key string) (time.Duration, error)
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}
