package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indica falha transitória do counter store.
	// Nunca chega ao chamador: os limiters fazem fail-open e só logam.
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrNoStore indica que nenhum counter store foi injetado.
	ErrNoStore = errors.New("counter store is required")

	// ErrInvalidPolicy indica configuração de limites ausente ou malformada.
	ErrInvalidPolicy = errors.New("invalid policy")
)

// PolicyError descreve qual campo da configuração de limites é inválido.
type PolicyError struct {
	Field   string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid policy: %s: %s", e.Field, e.Message)
}

func (e *PolicyError) Unwrap() error { return ErrInvalidPolicy }

func NewPolicyError(field, message string) *PolicyError {
	return &PolicyError{Field: field, Message: message}
}
