package domain

import "fmt"

// Limits agrega toda a configuração de cotas carregada no startup.
type Limits struct {
	Policies PolicyTable
	Login    LoginPolicy
	Burst    BurstPolicy
	Adaptive AdaptivePolicy
	// Global mapeia operação → teto agregado do serviço.
	Global map[string]Policy
}

func DefaultLimits() Limits {
	return Limits{
		Policies: DefaultPolicies(),
		Login:    DefaultLoginPolicy(),
		Burst:    DefaultBurstPolicy(),
		Adaptive: DefaultAdaptivePolicy(),
		Global:   map[string]Policy{},
	}
}

func (l Limits) Validate() error {
	if err := l.Policies.Validate(); err != nil {
		return err
	}
	if err := l.Login.Validate(); err != nil {
		return err
	}
	if err := l.Burst.Validate(); err != nil {
		return err
	}
	if err := l.Adaptive.Validate(); err != nil {
		return err
	}
	for op, p := range l.Global {
		if op == "" {
			return NewPolicyError("global", "operation name is required")
		}
		if !p.Valid() {
			return NewPolicyError(fmt.Sprintf("global.%s", op), "limit and window must be > 0")
		}
	}
	return nil
}
