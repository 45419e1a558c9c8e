// internal/exchange/errors.go
package exchange

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConsistencyViolation marks a missed or ambiguous update.
// It means producer and consumer pacing is broken; it is never a normal outcome.
var ErrConsistencyViolation = errors.New("exchange: consistency violation")

// ConsistencyError describes the violation observed by a waiter.
// Slot is -1 when no single slot can be blamed.
type ConsistencyError struct {
	Slot  int
	Delta uint64
}

func (e *ConsistencyError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("exchange: missed update: total counter advanced by %d", e.Delta)
	}
	return fmt.Sprintf("exchange: missed update on slot %d: counter advanced by %d", e.Slot, e.Delta)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistencyViolation }

// violation reports err, or panics in builds tagged blmcdebug.
func violation(err *ConsistencyError) error {
	if debugAssertions {
		panic(err)
	}
	return err
}
