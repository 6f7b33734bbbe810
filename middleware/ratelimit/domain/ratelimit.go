package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Result é o resultado de uma checagem de janela fixa.
type Result struct {
	Allowed   bool
	Count     int64
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded indica que o store falhou e o resultado é fail-open.
	Degraded bool
}

// Reason é o motivo legível por máquina de uma negação.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonSourceBanned        Reason = "source_banned"
	ReasonBurstBlocked        Reason = "burst_blocked"
	ReasonAccountLocked       Reason = "account_locked"
	ReasonSourceBlocked       Reason = "source_blocked"
	ReasonGlobalQuotaExceeded Reason = "global_quota_exceeded"
	ReasonQuotaExceeded       Reason = "quota_exceeded"
	// ReasonEventThrottled vem do pré-filtro local de eventos de socket.
	ReasonEventThrottled      Reason = "event_throttled"
)

// Message é o texto padrão enviado ao cliente para cada motivo.
func (r Reason) Message() string {
	switch r {
	case ReasonSourceBanned:
		return "requests from this address are not accepted"
	case ReasonBurstBlocked:
		return "too many requests in a short period, temporarily blocked"
	case ReasonAccountLocked:
		return "account temporarily locked after repeated failed logins"
	case ReasonSourceBlocked:
		return "address temporarily blocked after repeated failed logins"
	case ReasonGlobalQuotaExceeded:
		return "service is receiving too many requests, try again later"
	case ReasonQuotaExceeded:
		return "rate limit exceeded"
	case ReasonEventThrottled:
		return "too many events on this connection"
	default:
		return ""
	}
}

// Forbidden separa bloqueios de abuso (403) de excesso de cota (429).
func (r Reason) Forbidden() bool {
	switch r {
	case ReasonSourceBanned, ReasonAccountLocked, ReasonSourceBlocked:
		return true
	}
	return false
}

// Request é o que o gate precisa saber sobre uma request ou evento de socket.
type Request struct {
	// Subject é o usuário autenticado; vazio cai para Source.
	Subject string
	Source  string
	Tier    Tier
	Action  Action
	// Operation identifica a cota global (opcional).
	Operation string
	// Account e Auth só valem para endpoints de autenticação.
	Account string
	Auth    bool
}

// Identity retorna o sujeito da cota: Subject quando autenticado, senão Source.
func (r Request) Identity() string {
	if r.Subject != "" {
		return r.Subject
	}
	return r.Source
}

type Decision struct {
	Allowed bool
	Reason  Reason

	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	Degraded   bool
}

// Deny monta uma negação com RetryAfter arredondado para cima em segundos.
func Deny(reason Reason, resetAt, now time.Time) Decision {
	return Decision{
		Allowed:    false,
		Reason:     reason,
		ResetAt:    resetAt,
		RetryAfter: RetryAfter(resetAt, now),
	}
}

// RetryAfter é o tempo até resetAt, em segundos cheios, no mínimo 1s.
func RetryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return d.Truncate(time.Second) + roundUp(d%time.Second)
}

func roundUp(rest time.Duration) time.Duration {
	if rest > 0 {
		return time.Second
	}
	return 0
}
