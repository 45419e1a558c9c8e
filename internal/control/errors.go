// internal/control/errors.go
package control

import (
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/exchange"
	"github.com/tamzrod/blmc-driver/internal/joint"
	"github.com/tamzrod/blmc-driver/internal/status"
)

// ErrNoMeasurement is latched when the bus delivers nothing within the
// loop's stale timeout.
var ErrNoMeasurement = errors.New("control: no measurement")

// ErrorCode maps an error onto a status block error code.
// Errors that expose their own code keep it; anything else is generic.
func ErrorCode(err error) uint16 {
	switch {
	case err == nil:
		return status.ErrorNone
	case errors.Is(err, joint.ErrSafetyViolation):
		return status.ErrorSafetyViolation
	case errors.Is(err, exchange.ErrConsistencyViolation):
		return status.ErrorConsistency
	case errors.Is(err, joint.ErrHomingNotInitialized):
		return status.ErrorHomingNotInitialized
	case errors.Is(err, ErrNoMeasurement):
		return status.ErrorNoData
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return status.ErrorGeneric
}
