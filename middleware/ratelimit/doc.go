// Package ratelimit fornece os adapters de borda do controle de admissão:
// middleware HTTP (net/http), guard de eventos de socket, interceptor gRPC e
// limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: limiters, guards e o gate (Service.Decide) sem net/http
//   - infra: implementações concretas (Redis, memória, token bucket, semáforo, Prometheus, YAML)
//   - ratelimit (este pacote): middlewares + extração de chave/sujeito + tradução para status/headers/eventos
//
// Fluxo no gateway:
//
//  1. Extrai origem (IP/header/XFF), sujeito e tier da request
//  2. Chama o gate para obter a decisão
//  3. Sempre escreve X-RateLimit-Limit/Remaining/Reset (epoch ms)
//  4. Se negado, responde 429 (cota/burst) ou 403 (ban/lockout) com corpo JSON
//  5. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como REDIS_ADDR, LIMITS_FILE, CONCURRENCY_MAX e STORE_TIMEOUT.
package ratelimit
