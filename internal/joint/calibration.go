// internal/joint/calibration.go
package joint

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/spinner"
)

const (
	calibrationPeriod = time.Millisecond

	// index search: velocity D control
	searchGainD    = 0.2
	searchVelocity = 0.8 // rad/s

	// return to zero: PI on a linear profile
	returnGainP        = 2.5
	returnGainI        = 0.5
	returnIntegralSat  = 0.1  // Nm
	returnTolerance    = 1e-2 // rad
	returnHorizonTicks = 2000 // 2 s at calibrationPeriod
)

type calibrationPhase int

const (
	phaseSearch calibrationPhase = iota
	phaseStop
	phaseReturn
	phaseSettle
	phaseDone
)

// Calibration finds the encoder index, derives the zero angle from it and
// drives the joint back to zero. It is a Stepper; one Step per millisecond
// matches the gains above.
type Calibration struct {
	j          *Joint
	mechanical bool

	phase         calibrationPhase
	startPosition float64
	lastIndexTime int64

	angleZeroToIndex float64
	indexAngle       float64

	initPose   float64
	counter    int
	integral   float64
	finalAngle float64
}

// NewCalibration prepares a calibration run from the current position.
// With mechanical set, the zero-to-index angle is measured from the start
// position; otherwise angleZeroToIndex is used as given.
func (j *Joint) NewCalibration(mechanical bool, angleZeroToIndex float64) *Calibration {
	c := &Calibration{
		j:                j,
		mechanical:       mechanical,
		startPosition:    j.MeasuredAngle(),
		angleZeroToIndex: angleZeroToIndex,
	}
	j.SetZeroAngle(0)
	c.lastIndexTime = j.IndexTimeIndex()

	j.logger.Infow("calibration started", "joint", j.id, "start", c.startPosition, "mechanical", mechanical)
	return c
}

func (c *Calibration) AngleZeroToIndex() float64 { return c.angleZeroToIndex }
func (c *Calibration) IndexAngle() float64       { return c.indexAngle }
func (c *Calibration) FinalAngle() float64       { return c.finalAngle }

// Step advances the calibration by one tick.
func (c *Calibration) Step() (HomingStatus, error) {
	j := c.j

	switch c.phase {
	case phaseSearch:
		torque := searchGainD * (searchVelocity - j.MeasuredVelocity())
		if err := c.command(torque); err != nil {
			return HomingRunning, err
		}
		if j.IndexTimeIndex() > c.lastIndexTime {
			c.indexAngle = j.MeasuredIndexAngle()
			c.phase = phaseStop
		}
		return HomingRunning, nil

	case phaseStop:
		if err := c.command(0); err != nil {
			return HomingRunning, err
		}
		if c.mechanical {
			c.angleZeroToIndex = c.indexAngle - c.startPosition
		}
		j.SetZeroAngle(c.indexAngle - c.angleZeroToIndex)

		c.initPose = j.MeasuredAngle()
		c.counter = 0
		c.integral = 0
		c.phase = phaseReturn

		j.logger.Infow("calibration index found",
			"joint", j.id,
			"index_angle", c.indexAngle,
			"zero_angle", j.zeroAngle,
			"angle_zero_to_index", c.angleZeroToIndex)
		return HomingRunning, nil

	case phaseReturn:
		alpha := 1 - float64(c.counter)/returnHorizonTicks
		desired := alpha * c.initPose

		current := j.MeasuredAngle()
		e := desired - current

		c.integral += returnGainI * e * calibrationPeriod.Seconds()
		c.integral = math.Max(-returnIntegralSat, math.Min(returnIntegralSat, c.integral))

		if err := c.command(returnGainP*e + c.integral); err != nil {
			return HomingRunning, err
		}

		if math.Abs(current) <= returnTolerance {
			c.finalAngle = -e
			c.phase = phaseSettle
		}
		if c.counter < returnHorizonTicks {
			c.counter++
		}
		return HomingRunning, nil

	case phaseSettle:
		if err := c.command(0); err != nil {
			return HomingRunning, err
		}
		c.phase = phaseDone
		j.logger.Infow("calibration finished", "joint", j.id, "final_angle", c.finalAngle)
		return HomingSucceeded, nil

	default:
		return HomingSucceeded, nil
	}
}

func (c *Calibration) command(torque float64) error {
	if err := c.j.SetTorque(torque); err != nil {
		return err
	}
	return c.j.SendTorque()
}

// CalibrationResult is the outcome of Calibrate.
type CalibrationResult struct {
	AngleZeroToIndex float64
	IndexAngle       float64
	FinalAngle       float64

	// OK is true whenever the routine ran to completion. There is no
	// criterion yet for judging a completed run as bad.
	OK bool
}

// Calibrate runs a Calibration to completion at 1 ms and blocks until it is
// done. Only a safety violation or ctx ending abort it; zero torque is
// commanded on the way out in that case.
func (j *Joint) Calibrate(ctx context.Context, mechanical bool, angleZeroToIndex float64) (CalibrationResult, error) {
	sp, err := spinner.New(calibrationPeriod)
	if err != nil {
		return CalibrationResult{}, err
	}

	c := j.NewCalibration(mechanical, angleZeroToIndex)
	if _, err := Run(ctx, c, sp); err != nil {
		if !errors.Is(err, ErrSafetyViolation) {
			if zerr := c.command(0); zerr != nil {
				j.logger.Errorw("zero torque after aborted calibration failed", "joint", j.id, "error", zerr)
			}
		}
		return CalibrationResult{}, errors.Wrapf(err, "joint %d: calibration", j.id)
	}

	return CalibrationResult{
		AngleZeroToIndex: c.angleZeroToIndex,
		IndexAngle:       c.indexAngle,
		FinalAngle:       c.finalAngle,
		OK:               true,
	}, nil
}
