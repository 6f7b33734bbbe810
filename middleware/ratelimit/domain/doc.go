// Package domain define contratos e tipos de domínio para o controle de admissão:
// janelas fixas, políticas por tier, lockout de login, burst e decisões do gate.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (Redis, memória, Prometheus).
package domain
