package domain

import "time"

// LoginPolicy configura o escalonamento de falhas de autenticação.
type LoginPolicy struct {
	MaxAccountFailures  int
	MaxSourceFailures   int
	FailureWindow       time.Duration
	LockoutDuration     time.Duration
	SourceBlockDuration time.Duration
}

func (p LoginPolicy) Validate() error {
	switch {
	case p.MaxAccountFailures <= 0:
		return NewPolicyError("login.max_account_failures", "must be > 0")
	case p.MaxSourceFailures <= 0:
		return NewPolicyError("login.max_source_failures", "must be > 0")
	case p.FailureWindow <= 0:
		return NewPolicyError("login.failure_window", "must be > 0")
	case p.LockoutDuration <= 0:
		return NewPolicyError("login.lockout_duration", "must be > 0")
	case p.SourceBlockDuration <= 0:
		return NewPolicyError("login.source_block_duration", "must be > 0")
	}
	return nil
}

func DefaultLoginPolicy() LoginPolicy {
	return LoginPolicy{
		MaxAccountFailures:  5,
		MaxSourceFailures:   10,
		FailureWindow:       time.Hour,
		LockoutDuration:     30 * time.Minute,
		SourceBlockDuration: time.Hour,
	}
}

// LoginAttempt é o estado depois de registrar uma falha de login.
type LoginAttempt struct {
	Attempts       int64
	SourceAttempts int64
	Blocked        bool
	SourceBlocked  bool
	// ResetAt é o fim do lockout quando Blocked, senão o fim da janela de falhas.
	ResetAt  time.Time
	Degraded bool
}
