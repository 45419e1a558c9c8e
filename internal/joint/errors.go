// internal/joint/errors.go
package joint

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSafetyViolation marks a torque request whose current exceeds the
	// joint's maximum. Zero current has been commanded when it is returned.
	ErrSafetyViolation = errors.New("safety violation")

	// ErrHomingNotSucceeded is returned by queries that need a finished homing.
	ErrHomingNotSucceeded = errors.New("homing has not succeeded")

	// ErrHomingNotInitialized is returned by UpdateHoming before InitHoming.
	ErrHomingNotInitialized = errors.New("homing not initialized")
)

// SafetyError carries the rejected current.
type SafetyError struct {
	JointID    int
	Current    float64
	MaxCurrent float64
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("joint %d: desired current %g A exceeds max %g A: %v",
		e.JointID, e.Current, e.MaxCurrent, ErrSafetyViolation)
}

func (e *SafetyError) Unwrap() error { return ErrSafetyViolation }
