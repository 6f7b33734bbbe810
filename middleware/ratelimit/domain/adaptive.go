package domain

import (
	"fmt"
	"sort"
)

// LoadStep aplica Multiplier quando a carga é estritamente maior que Above.
type LoadStep struct {
	Above      float64 `yaml:"above"`
	Multiplier float64 `yaml:"multiplier"`
}

// AdaptivePolicy é uma função degrau monótona da carga.
type AdaptivePolicy struct {
	Steps []LoadStep
}

// Multiplier retorna o multiplicador do primeiro degrau cuja faixa contém load.
// Steps deve estar ordenado por Above decrescente (ver Normalize).
func (p AdaptivePolicy) Multiplier(load float64) float64 {
	for _, s := range p.Steps {
		if load > s.Above {
			return s.Multiplier
		}
	}
	return 1.0
}

// Normalize devolve uma cópia com os degraus ordenados por Above decrescente.
func (p AdaptivePolicy) Normalize() AdaptivePolicy {
	steps := append([]LoadStep(nil), p.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Above > steps[j].Above })
	return AdaptivePolicy{Steps: steps}
}

func (p AdaptivePolicy) Validate() error {
	prev := 0.0
	for i, s := range p.Normalize().Steps {
		field := fmt.Sprintf("adaptive.steps[%d]", i)
		if s.Above < 0 || s.Above >= 1 {
			return NewPolicyError(field, "above must be in [0,1)")
		}
		if s.Multiplier <= 0 || s.Multiplier > 1 {
			return NewPolicyError(field, "multiplier must be in (0,1]")
		}
		// carga maior nunca pode liberar mais cota
		if i > 0 && s.Multiplier < prev {
			return NewPolicyError(field, "multipliers must not decrease as load decreases")
		}
		prev = s.Multiplier
	}
	return nil
}

func DefaultAdaptivePolicy() AdaptivePolicy {
	return AdaptivePolicy{Steps: []LoadStep{
		{Above: 0.8, Multiplier: 0.5},
		{Above: 0.6, Multiplier: 0.7},
		{Above: 0.4, Multiplier: 0.9},
	}}
}
