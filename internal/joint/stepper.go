// internal/joint/stepper.go
package joint

import (
	"context"

	"github.com/tamzrod/blmc-driver/internal/spinner"
)

// Stepper is a routine advanced one control tick at a time.
// Step stages and sends the tick's command and reports progress.
type Stepper interface {
	Step() (HomingStatus, error)
}

// StepperFunc adapts a function to Stepper.
type StepperFunc func() (HomingStatus, error)

func (f StepperFunc) Step() (HomingStatus, error) { return f() }

// Run ticks s at the spinner period until it reports a terminal status,
// returns an error, or ctx is done.
func Run(ctx context.Context, s Stepper, sp *spinner.Spinner) (HomingStatus, error) {
	for {
		status, err := s.Step()
		if err != nil || status.Terminal() {
			return status, err
		}
		if err := sp.Spin(ctx); err != nil {
			return status, err
		}
	}
}

// HomingStepper exposes the homing search as a Stepper: each Step is one
// UpdateHoming tick followed by SendTorque. InitHoming must be called first.
func (j *Joint) HomingStepper() Stepper {
	return StepperFunc(func() (HomingStatus, error) {
		status, err := j.UpdateHoming()
		if err != nil {
			return status, err
		}
		return status, j.SendTorque()
	})
}
