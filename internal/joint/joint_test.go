// internal/joint/joint_test.go
package joint

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/history"
	"github.com/tamzrod/blmc-driver/internal/motor"
)

// fakeMotor records staged and sent current targets and serves histories
// the test fills directly.
type fakeMotor struct {
	hist   map[motor.Measurement]*history.Series
	sent   *history.Series
	target float64
	sends   int
	onSend  func()
	sendErr error
}

func newFakeMotor() *fakeMotor {
	return &fakeMotor{
		hist: map[motor.Measurement]*history.Series{
			motor.Current:      history.NewSeries(64),
			motor.Position:     history.NewSeries(64),
			motor.Velocity:     history.NewSeries(64),
			motor.EncoderIndex: history.NewSeries(64),
		},
		sent: history.NewSeries(64),
	}
}

func (f *fakeMotor) SetCurrentTarget(amps float64) { f.target = amps }

func (f *fakeMotor) SendIfInputChanged() error {
	f.sends++
	f.sent.Append(f.target)
	if f.onSend != nil {
		f.onSend()
	}
	return f.sendErr
}

func (f *fakeMotor) Measurement(id motor.Measurement) history.History { return f.hist[id] }
func (f *fakeMotor) SentCurrentTarget() history.History               { return f.sent }

func (f *fakeMotor) push(id motor.Measurement, v float64) { f.hist[id].Append(v) }

func newTestJoint(t *testing.T, m motor.Interface, p Params) *Joint {
	t.Helper()
	if p.GearRatio == 0 {
		p.GearRatio = 1
	}
	if p.MotorConstant == 0 {
		p.MotorConstant = 1
	}
	if p.MaxCurrent == 0 {
		p.MaxCurrent = 1
	}
	j, err := New(m, p, golog.NewTestLogger(t))
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	return j
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNew_RejectsBadParams(t *testing.T) {
	logger := golog.NewTestLogger(t)
	m := newFakeMotor()

	bad := []Params{
		{GearRatio: 0, MotorConstant: 1, MaxCurrent: 1},
		{GearRatio: 1, MotorConstant: 0, MaxCurrent: 1},
		{GearRatio: 1, MotorConstant: 1, MaxCurrent: 0},
		{GearRatio: math.NaN(), MotorConstant: 1, MaxCurrent: 1},
	}
	for i, p := range bad {
		if _, err := New(m, p, logger); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if _, err := New(nil, Params{GearRatio: 1, MotorConstant: 1, MaxCurrent: 1}, logger); err == nil {
		t.Fatalf("expected error for nil motor")
	}
}

func TestTorqueCurrentRoundTrip(t *testing.T) {
	j := newTestJoint(t, newFakeMotor(), Params{GearRatio: 9, MotorConstant: 0.025, MaxCurrent: 12})

	for _, torque := range []float64{0, 0.1, -0.37, 2.7, -2.7} {
		got := j.MotorCurrentToJointTorque(j.JointTorqueToMotorCurrent(torque))
		if !near(got, torque) {
			t.Fatalf("round trip %f -> %f", torque, got)
		}
	}
	if !near(j.MotorCurrentToJointTorque(2), 2*9*0.025) {
		t.Fatalf("current to torque")
	}
}

func TestMaxTorqueHasMargin(t *testing.T) {
	j := newTestJoint(t, newFakeMotor(), Params{GearRatio: 2, MotorConstant: 0.5, MaxCurrent: 10})
	if !near(j.MaxTorque(), 10*2*0.5*0.9) {
		t.Fatalf("max torque: got=%f", j.MaxTorque())
	}
}

func TestSetTorque_RejectsOverCurrent(t *testing.T) {
	m := newFakeMotor()
	j := newTestJoint(t, m, Params{ID: 3, GearRatio: 1, MotorConstant: 1, MaxCurrent: 1})

	if err := j.SetTorque(0.5); err != nil {
		t.Fatalf("in-range torque rejected: %v", err)
	}
	if m.target != 0.5 {
		t.Fatalf("target: got=%f", m.target)
	}

	err := j.SetTorque(5)
	if !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("expected safety violation, got %v", err)
	}
	var se *SafetyError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SafetyError, got %T", err)
	}
	if se.Current != 5 || se.MaxCurrent != 1 || se.JointID != 3 {
		t.Fatalf("unexpected safety error: %+v", se)
	}
	if m.target != 0 {
		t.Fatalf("zero current must be staged, got %f", m.target)
	}
	if m.sent.Newest() != 0 {
		t.Fatalf("zero current must be sent, got %f", m.sent.Newest())
	}

	if err := j.SetTorque(math.NaN()); !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("NaN torque must be a safety violation, got %v", err)
	}
}

func TestSetTorque_AppliesPolarity(t *testing.T) {
	m := newFakeMotor()
	j := newTestJoint(t, m, Params{GearRatio: 2, MotorConstant: 0.5, MaxCurrent: 1, ReversePolarity: true})

	if err := j.SetTorque(0.5); err != nil {
		t.Fatalf("SetTorque err=%v", err)
	}
	if m.target != -0.5 {
		t.Fatalf("reversed target: got=%f", m.target)
	}
	if err := j.SendTorque(); err != nil {
		t.Fatalf("SendTorque err=%v", err)
	}
	if !near(j.SentTorque(), 0.5) {
		t.Fatalf("sent torque in joint frame: got=%f", j.SentTorque())
	}
}

func TestSentTorque_ReportedInJointFrame(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		m := newFakeMotor()
		j := newTestJoint(t, m, Params{GearRatio: 4, MotorConstant: 0.1, MaxCurrent: 2, ReversePolarity: reverse})

		if !math.IsNaN(j.SentTorque()) {
			t.Fatalf("reverse=%v: nothing sent yet, want NaN", reverse)
		}
		if err := j.SetTorque(-0.3); err != nil {
			t.Fatalf("SetTorque err=%v", err)
		}
		_ = j.SendTorque()

		// -0.3 Nm / (4 * 0.1) = -0.75 A in the joint frame
		wantCurrent := -0.75
		if reverse {
			wantCurrent = 0.75
		}
		if !near(m.sent.Newest(), wantCurrent) {
			t.Fatalf("reverse=%v: motor current got=%f want=%f", reverse, m.sent.Newest(), wantCurrent)
		}
		if !near(j.SentTorque(), -0.3) {
			t.Fatalf("reverse=%v: sent torque must read as commanded, got=%f", reverse, j.SentTorque())
		}
	}
}

func TestMeasurements_NaNWhenEmpty(t *testing.T) {
	j := newTestJoint(t, newFakeMotor(), Params{})

	for name, v := range map[string]float64{
		"angle":       j.MeasuredAngle(),
		"velocity":    j.MeasuredVelocity(),
		"torque":      j.MeasuredTorque(),
		"index angle": j.MeasuredIndexAngle(),
		"sent torque": j.SentTorque(),
	} {
		if !math.IsNaN(v) {
			t.Fatalf("%s: expected NaN, got %f", name, v)
		}
	}
	if j.IndexTimeIndex() != -1 {
		t.Fatalf("index time index: expected -1, got %d", j.IndexTimeIndex())
	}
}

func TestMeasurements_ZeroIsAReading(t *testing.T) {
	m := newFakeMotor()
	j := newTestJoint(t, m, Params{})
	m.push(motor.Position, 0)

	if got := j.MeasuredAngle(); got != 0 {
		t.Fatalf("zero position must read 0, got %f", got)
	}
}

func TestMeasurements_Conversion(t *testing.T) {
	m := newFakeMotor()
	j := newTestJoint(t, m, Params{GearRatio: 4, MotorConstant: 0.1, MaxCurrent: 5, ZeroAngle: 0.25, ReversePolarity: true})

	m.push(motor.Position, 2)
	m.push(motor.Velocity, 8)
	m.push(motor.Current, 1)
	m.push(motor.EncoderIndex, 4)

	if !near(j.MeasuredAngle(), -2.0/4-0.25) {
		t.Fatalf("angle: got=%f", j.MeasuredAngle())
	}
	if !near(j.MeasuredVelocity(), -2) {
		t.Fatalf("velocity: got=%f", j.MeasuredVelocity())
	}
	if !near(j.MeasuredTorque(), -0.4) {
		t.Fatalf("torque: got=%f", j.MeasuredTorque())
	}
	if !near(j.MeasuredIndexAngle(), -1) {
		t.Fatalf("index angle: got=%f", j.MeasuredIndexAngle())
	}
}

func TestExecutePositionController(t *testing.T) {
	m := newFakeMotor()
	j := newTestJoint(t, m, Params{GearRatio: 1, MotorConstant: 1, MaxCurrent: 10})
	j.SetPositionControlGains(2, 0.5)

	m.push(motor.Position, 1)
	m.push(motor.Velocity, 2)

	// 2*(1.5-1) - 0.5*2 = 0
	if got := j.ExecutePositionController(1.5); !near(got, 0) {
		t.Fatalf("pd: got=%f", got)
	}
	if got := j.ExecutePositionController(100); !near(got, j.MaxTorque()) {
		t.Fatalf("upper clamp: got=%f", got)
	}
	if got := j.ExecutePositionController(-100); !near(got, -j.MaxTorque()) {
		t.Fatalf("lower clamp: got=%f", got)
	}
}
