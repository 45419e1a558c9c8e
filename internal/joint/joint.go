// internal/joint/joint.go
package joint

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/motor"
)

// torqueMargin scales the hardware torque limit down for controller output.
const torqueMargin = 0.9

// Params is the static description of one joint.
type Params struct {
	ID   int
	Name string

	MotorConstant   float64 // Nm/A
	GearRatio       float64
	ZeroAngle       float64 // rad
	ReversePolarity bool
	MaxCurrent      float64 // A
}

// Joint maps joint-side torque and angle onto one motor.
// A Joint is confined to the goroutine that controls it.
type Joint struct {
	motor  motor.Interface
	logger golog.Logger

	id   int
	name string

	motorConstant float64
	gearRatio     float64
	zeroAngle     float64
	polarity      float64
	maxCurrent    float64

	kp, kd float64

	homing homingState
}

// New creates a joint on m. Gains start at zero.
func New(m motor.Interface, p Params, logger golog.Logger) (*Joint, error) {
	if m == nil {
		return nil, errors.New("joint: motor required")
	}
	if p.GearRatio == 0 || math.IsNaN(p.GearRatio) || math.IsInf(p.GearRatio, 0) {
		return nil, errors.Errorf("joint %d: gear ratio must be finite and non-zero", p.ID)
	}
	if p.MotorConstant == 0 || math.IsNaN(p.MotorConstant) || math.IsInf(p.MotorConstant, 0) {
		return nil, errors.Errorf("joint %d: motor constant must be finite and non-zero", p.ID)
	}
	if !(p.MaxCurrent > 0) {
		return nil, errors.Errorf("joint %d: max current must be > 0", p.ID)
	}

	j := &Joint{
		motor:         m,
		logger:        logger,
		id:            p.ID,
		name:          p.Name,
		motorConstant: p.MotorConstant,
		gearRatio:     p.GearRatio,
		maxCurrent:    p.MaxCurrent,
	}
	j.SetZeroAngle(p.ZeroAngle)
	j.SetPolarity(p.ReversePolarity)
	return j, nil
}

func (j *Joint) ID() int      { return j.id }
func (j *Joint) Name() string { return j.name }

// ---- configuration ----

func (j *Joint) SetZeroAngle(a float64) { j.zeroAngle = a }
func (j *Joint) ZeroAngle() float64     { return j.zeroAngle }

func (j *Joint) SetPolarity(reverse bool) {
	j.polarity = 1
	if reverse {
		j.polarity = -1
	}
}

func (j *Joint) SetPositionControlGains(kp, kd float64) {
	j.kp, j.kd = kp, kd
}

// ---- conversions ----

func (j *Joint) JointTorqueToMotorCurrent(torque float64) float64 {
	return torque / j.gearRatio / j.motorConstant
}

func (j *Joint) MotorCurrentToJointTorque(current float64) float64 {
	return current * j.gearRatio * j.motorConstant
}

// MaxTorque is the largest torque the position controller will output.
func (j *Joint) MaxTorque() float64 {
	return j.MotorCurrentToJointTorque(j.maxCurrent) * torqueMargin
}

// ---- commands ----

// SetTorque stages the motor current for torque.
// A current above the maximum, or a non-finite one, stages and sends zero
// current instead and returns a *SafetyError.
func (j *Joint) SetTorque(torque float64) error {
	current := j.JointTorqueToMotorCurrent(torque)

	if math.IsNaN(current) || math.IsInf(current, 0) || math.Abs(current) > j.maxCurrent {
		j.motor.SetCurrentTarget(0)
		if err := j.motor.SendIfInputChanged(); err != nil {
			j.logger.Errorw("zero current send failed", "joint", j.id, "error", err)
		}
		return &SafetyError{JointID: j.id, Current: current, MaxCurrent: j.maxCurrent}
	}

	j.motor.SetCurrentTarget(j.polarity * current)
	return nil
}

// SendTorque sends the staged current if it changed.
func (j *Joint) SendTorque() error {
	return j.motor.SendIfInputChanged()
}

// ---- measurements ----
// All readings are NaN until the first sample arrives.

func (j *Joint) MeasuredAngle() float64 {
	return j.motorMeasurement(motor.Position)/j.gearRatio - j.zeroAngle
}

func (j *Joint) MeasuredVelocity() float64 {
	return j.motorMeasurement(motor.Velocity) / j.gearRatio
}

func (j *Joint) MeasuredTorque() float64 {
	return j.MotorCurrentToJointTorque(j.motorMeasurement(motor.Current))
}

// MeasuredIndexAngle is the joint angle of the newest index pulse, before
// the zero offset is applied.
func (j *Joint) MeasuredIndexAngle() float64 {
	return j.motorMeasurement(motor.EncoderIndex) / j.gearRatio
}

// IndexTimeIndex is the time index of the newest index pulse, -1 if none.
func (j *Joint) IndexTimeIndex() int64 {
	h := j.motor.Measurement(motor.EncoderIndex)
	if h.Len() == 0 {
		return -1
	}
	return h.NewestIndex()
}

// SentTorque is the torque of the newest current the bus actually wrote.
func (j *Joint) SentTorque() float64 {
	h := j.motor.SentCurrentTarget()
	if h.Len() == 0 {
		return math.NaN()
	}
	return j.MotorCurrentToJointTorque(j.polarity * h.Newest())
}

func (j *Joint) motorMeasurement(id motor.Measurement) float64 {
	h := j.motor.Measurement(id)
	if h.Len() == 0 {
		return math.NaN()
	}
	return j.polarity * h.Newest()
}

// ---- control ----

// ExecutePositionController returns the PD torque toward target, clamped to
// ±MaxTorque. It does not command anything.
func (j *Joint) ExecutePositionController(target float64) float64 {
	torque := j.kp*(target-j.MeasuredAngle()) - j.kd*j.MeasuredVelocity()

	limit := j.MaxTorque()
	if torque > limit {
		torque = limit
	} else if torque < -limit {
		torque = -limit
	}
	return torque
}
