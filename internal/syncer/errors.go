package syncer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError is returned by the encoder for input that can never apply:
// it surfaces immediately and nothing reaches the queue.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientMaterialError is the encoder's advisory pre-check failure:
// the cached Processing stock cannot cover a produce intent. Advisory only —
// the authority re-validates against the real ledger.
type InsufficientMaterialError struct {
	ItemName  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientMaterialError) Error() string {
	return fmt.Sprintf("insufficient material: %s requires %s, cached stock %s",
		e.ItemName, e.Required, e.Available)
}
