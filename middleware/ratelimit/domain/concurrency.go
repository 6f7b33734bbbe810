package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: requests em voo).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
// InUse/Capacity permitem derivar um sinal de carga para o limiter adaptativo.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Capacity() int
}

// LoadSource fornece o fator de carga atual do sistema, em [0,1].
// Como a carga é medida fica a cargo de quem implementa.
type LoadSource interface {
	LoadFactor() float64
}

// LoadFunc adapta uma função simples para LoadSource.
type LoadFunc func() float64

func (f LoadFunc) LoadFactor() float64 { return f() }
