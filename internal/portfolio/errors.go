package portfolio

import (
	"errors"
	"fmt"
)

// Recoverable accounting errors; the caller decides whether to retry, skip,
// or surface them.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPositionNotFound  = errors.New("position not found")
)

// RangeError marks a caller contract violation: a value outside the domain
// the callee guarantees to handle. Treated as fatal by the engine.
type RangeError struct {
	Op     string
	Value  float64
	Domain string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value %.4f outside %s", e.Op, e.Value, e.Domain)
}
