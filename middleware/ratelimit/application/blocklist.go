package application

import "context"

const blocklistKey = "blocklist:sources"

// Blocklist é a lista estática de endereços banidos, mantida num set do store.
type Blocklist struct {
	base
}

func NewBlocklist(opts Options) *Blocklist {
	return &Blocklist{base: newBase(opts)}
}

func (b *Blocklist) Ban(ctx context.Context, addrs ...string) bool {
	if len(addrs) == 0 {
		return true
	}
	return b.store.sadd(ctx, blocklistKey, addrs...)
}

// IsBanned retorna false quando o store está indisponível (fail-open).
func (b *Blocklist) IsBanned(ctx context.Context, addr string) bool {
	if addr == "" {
		return false
	}
	banned, ok := b.store.sismember(ctx, blocklistKey, addr)
	return ok && banned
}
