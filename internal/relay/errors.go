package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDestinations is returned when Select is given an empty destination list
	ErrNoDestinations = errors.New("no destinations configured")
	// ErrDestinationsExhausted is returned when every destination refused or failed
	ErrDestinationsExhausted = errors.New("all destinations are unreachable")
	// ErrPumpPanic wraps a panic recovered inside a copy pump
	ErrPumpPanic = errors.New("relay pump panicked")
)

// AttemptError records why one destination could not be connected
type AttemptError struct {
	Port uint16
	Err  error
}

// Error implements error
func (e *AttemptError) Error() string {
	return fmt.Sprintf(":%d is unreachable: %v", e.Port, e.Err)
}

// Unwrap returns the underlying dial error
func (e *AttemptError) Unwrap() error {
	return e.Err
}
