package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation marks input rejected before any state was created
	ErrValidation = errors.New("validation failed")
	// ErrGatewayUnavailable marks a retriable payment gateway failure
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cart is empty")
)

// ValidationError carries per-field messages and unwraps to ErrValidation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
