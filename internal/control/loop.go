// internal/control/loop.go
package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/exchange"
	"github.com/tamzrod/blmc-driver/internal/joint"
	"github.com/tamzrod/blmc-driver/internal/status"
)

// DefaultStaleAfter is how long a loop waits for a measurement before it
// disarms the joint.
const DefaultStaleAfter = 100 * time.Millisecond

// Mode selects what a Loop commands each cycle.
type Mode int

const (
	ModeTorque Mode = iota // fixed torque; zero when idle
	ModeHold               // PD toward a target angle
	ModeHoming             // index search, then hold home
)

func (m Mode) String() string {
	switch m {
	case ModeTorque:
		return "torque"
	case ModeHold:
		return "hold"
	case ModeHoming:
		return "homing"
	default:
		return "unknown"
	}
}

// HomingParams configures an index search.
type HomingParams struct {
	SearchDistanceLimit float64
	HomeOffset          float64
	ProfileStepSize     float64
}

// MeasurementWaiter paces a loop on the bus.
type MeasurementWaiter interface {
	WaitForMeasurement(ctx context.Context) error
}

type request struct {
	mode        Mode
	torque      float64
	target      float64
	holdCurrent bool
	homing      HomingParams
}

// Loop is the control goroutine of one joint. Each bus cycle it runs the
// active mode, sends the resulting torque and refreshes its snapshot.
// The joint is touched only by Run; other goroutines go through the
// request and snapshot methods.
type Loop struct {
	j      *joint.Joint
	w      MeasurementWaiter
	logger golog.Logger

	staleAfter time.Duration

	mu      sync.Mutex
	pending *request
	snap    status.Snapshot
	lastErr error
	cycles  uint64

	// owned by Run
	mode   Mode
	torque float64
	target float64
	fault  error
	stale  bool
}

// NewLoop creates an idle loop: zero torque until told otherwise.
func NewLoop(j *joint.Joint, w MeasurementWaiter, logger golog.Logger) *Loop {
	return &Loop{
		j:          j,
		w:          w,
		logger:     logger,
		staleAfter: DefaultStaleAfter,
		snap: status.Snapshot{
			Health:   status.HealthUnknown,
			Angle:    math.NaN(),
			Velocity: math.NaN(),
			Torque:   math.NaN(),
		},
	}
}

// SetStaleAfter sets how long Run waits for a measurement before it reports
// ErrNoMeasurement and disarms. Zero waits forever. Call it before Run.
func (l *Loop) SetStaleAfter(d time.Duration) { l.staleAfter = d }

// Joint returns the controlled joint. It must not be driven while Run is active.
func (l *Loop) Joint() *joint.Joint { return l.j }

// ApplyTorque switches to a fixed torque from the next cycle.
func (l *Loop) ApplyTorque(torque float64) {
	l.submit(&request{mode: ModeTorque, torque: torque})
}

// Hold switches to position control toward target from the next cycle.
func (l *Loop) Hold(target float64) {
	l.submit(&request{mode: ModeHold, target: target})
}

// HoldCurrentPosition holds wherever the joint is at the next cycle.
func (l *Loop) HoldCurrentPosition() {
	l.submit(&request{mode: ModeHold, holdCurrent: true})
}

// StartHoming starts an index search at the next cycle.
func (l *Loop) StartHoming(p HomingParams) {
	l.submit(&request{mode: ModeHoming, homing: p})
}

func (l *Loop) submit(r *request) {
	l.mu.Lock()
	l.pending = r
	l.mu.Unlock()
}

// Snapshot returns the state published by the last cycle.
func (l *Loop) Snapshot() status.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Err returns the fault of the last cycle, nil when healthy.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles
}

// Run drives the joint until ctx is done or the bus stream breaks.
// A failed cycle commands zero torque and latches the fault into the
// snapshot; the next accepted request clears it. A missed bus cycle or a
// measurement gap longer than the stale timeout is latched the same way and
// Run keeps waiting for the bus.
// Zero torque is commanded when Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer l.release()

	for {
		err := l.wait(ctx)
		switch {
		case err == nil:
			l.cycle()

		case ctx.Err() != nil:
			return ctx.Err()

		case errors.Is(err, context.DeadlineExceeded):
			l.markStale()

		case errors.Is(err, exchange.ErrConsistencyViolation):
			l.fail(errors.Wrapf(err, "joint %d: missed bus cycle", l.j.ID()))
			l.publish()

		default:
			err = errors.Wrapf(err, "joint %d: measurement stream", l.j.ID())
			l.fail(err)
			l.publish()
			return err
		}
	}
}

func (l *Loop) wait(ctx context.Context) error {
	if l.staleAfter <= 0 {
		return l.w.WaitForMeasurement(ctx)
	}
	wctx, cancel := context.WithTimeout(ctx, l.staleAfter)
	defer cancel()
	return l.w.WaitForMeasurement(wctx)
}

// cycle runs one control step. Errors are latched, not returned.
func (l *Loop) cycle() {
	l.stale = false
	l.applyPending()

	var err error
	switch l.mode {
	case ModeTorque:
		err = l.j.SetTorque(l.torque)
	case ModeHold:
		err = l.j.SetTorque(l.j.ExecutePositionController(l.target))
	case ModeHoming:
		_, err = l.j.UpdateHoming()
	}
	if err == nil {
		err = l.j.SendTorque()
	}
	if err != nil {
		l.fail(err)
	}

	l.publish()

	l.mu.Lock()
	l.cycles++
	l.mu.Unlock()
}

// markStale reports a measurement gap: no data in the snapshot, joint disarmed.
func (l *Loop) markStale() {
	l.stale = true
	l.fail(errors.Wrapf(ErrNoMeasurement, "joint %d: none for %s", l.j.ID(), l.staleAfter))
	l.publish()
}

// fail latches err and disarms to zero torque.
func (l *Loop) fail(err error) {
	l.latch(err)
	l.mode = ModeTorque
	l.torque = 0
	// SetTorque already staged zero on a safety violation
	if zerr := l.j.SetTorque(0); zerr != nil {
		l.logger.Errorw("zero torque after fault failed", "joint", l.j.ID(), "error", zerr)
		return
	}
	if zerr := l.j.SendTorque(); zerr != nil {
		l.logger.Errorw("zero torque send after fault failed", "joint", l.j.ID(), "error", zerr)
	}
}

func (l *Loop) applyPending() {
	l.mu.Lock()
	r := l.pending
	l.pending = nil
	l.mu.Unlock()

	if r == nil {
		return
	}

	l.fault = nil
	l.mode = r.mode
	l.torque = r.torque
	l.target = r.target

	switch {
	case r.mode == ModeHold && r.holdCurrent:
		l.target = l.j.MeasuredAngle()
	case r.mode == ModeHoming:
		if err := l.j.InitHoming(l.j.ID(), r.homing.SearchDistanceLimit, r.homing.HomeOffset, r.homing.ProfileStepSize); err != nil {
			l.fail(err)
		}
	}

	l.logger.Infow("control mode changed", "joint", l.j.ID(), "mode", l.mode, "target", l.target, "torque", l.torque)
}

func (l *Loop) latch(err error) {
	if l.fault == nil {
		l.logger.Errorw("joint fault", "joint", l.j.ID(), "error", err)
	}
	l.fault = err
}

func (l *Loop) publish() {
	s := status.Snapshot{
		Homing:   uint16(l.j.Homing()),
		Angle:    l.j.MeasuredAngle(),
		Velocity: l.j.MeasuredVelocity(),
		Torque:   l.j.MeasuredTorque(),
		Health:   status.HealthOK,
	}

	if l.stale {
		s.Angle, s.Velocity, s.Torque = math.NaN(), math.NaN(), math.NaN()
	}

	switch {
	case l.fault != nil:
		s.Health = status.HealthError
		s.LastErrorCode = ErrorCode(l.fault)
	case l.mode == ModeHoming && l.j.Homing() == joint.HomingFailed:
		s.Health = status.HealthError
		s.LastErrorCode = status.ErrorHomingFailed
	}

	l.mu.Lock()
	l.snap = s
	l.lastErr = l.fault
	l.mu.Unlock()
}

func (l *Loop) release() {
	if err := l.j.SetTorque(0); err != nil {
		l.logger.Errorw("zero torque on exit failed", "joint", l.j.ID(), "error", err)
	}
	if err := l.j.SendTorque(); err != nil {
		l.logger.Errorw("zero torque send on exit failed", "joint", l.j.ID(), "error", err)
	}
}
