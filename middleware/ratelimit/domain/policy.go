package domain

import (
	"fmt"
	"time"
)

// Tier é o nível de assinatura que seleciona a política de cota.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Action é o tipo de operação sendo contada.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Policy é o par {limit, windowSeconds} de uma combinação tier × action.
type Policy struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window"`
}

func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

func (p Policy) Valid() bool {
	return p.Limit > 0 && p.WindowSeconds > 0
}

// restrictsMore compara políticas por eventos/segundo; empate fica com o menor limite.
func (p Policy) restrictsMore(other Policy) bool {
	// p.Limit/p.Window < o.Limit/o.Window sem divisão
	lhs := int64(p.Limit) * int64(other.WindowSeconds)
	rhs := int64(other.Limit) * int64(p.WindowSeconds)
	if lhs != rhs {
		return lhs < rhs
	}
	return p.Limit < other.Limit
}

// PolicyTable mapeia tier → action → política. Imutável depois de carregada.
type PolicyTable map[Tier]map[Action]Policy

func (t PolicyTable) Lookup(tier Tier, action Action) (Policy, bool) {
	actions, ok := t[tier]
	if !ok {
		return Policy{}, false
	}
	p, ok := actions[action]
	return p, ok
}

// MostRestrictive retorna a política com a menor vazão configurada.
func (t PolicyTable) MostRestrictive() (Policy, bool) {
	var (
		best  Policy
		found bool
	)
	for _, actions := range t {
		for _, p := range actions {
			if !p.Valid() {
				continue
			}
			if !found || p.restrictsMore(best) {
				best, found = p, true
			}
		}
	}
	return best, found
}

func (t PolicyTable) Validate() error {
	if len(t) == 0 {
		return NewPolicyError("policies", "at least one tier is required")
	}
	for tier, actions := range t {
		if len(actions) == 0 {
			return NewPolicyError(fmt.Sprintf("policies.%s", tier), "at least one action is required")
		}
		for action, p := range actions {
			if !p.Valid() {
				return NewPolicyError(fmt.Sprintf("policies.%s.%s", tier, action), "limit and window must be > 0")
			}
		}
	}
	return nil
}

func DefaultPolicies() PolicyTable {
	return PolicyTable{
		TierFree: {
			ActionRead:   {Limit: 100, WindowSeconds: 60},
			ActionWrite:  {Limit: 20, WindowSeconds: 60},
			ActionDelete: {Limit: 10, WindowSeconds: 60},
		},
		TierPremium: {
			ActionRead:   {Limit: 1000, WindowSeconds: 60},
			ActionWrite:  {Limit: 200, WindowSeconds: 60},
			ActionDelete: {Limit: 100, WindowSeconds: 60},
		},
		TierEnterprise: {
			ActionRead:   {Limit: 10000, WindowSeconds: 60},
			ActionWrite:  {Limit: 2000, WindowSeconds: 60},
			ActionDelete: {Limit: 1000, WindowSeconds: 60},
		},
	}
}
