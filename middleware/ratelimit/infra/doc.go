// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: counter store compartilhado usando github.com/redis/go-redis/v9
//   - MemoryStore: counter store em processo, com TTL (dev/testes)
//   - LocalBuckets: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - PrometheusStats / RedisStatsStore / MemoryStatsStore: estatísticas de decisão
//   - LoadLimits: carrega políticas de um arquivo YAML
package infra
