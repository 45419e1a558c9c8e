// internal/joint/homing.go
package joint

import (
	"math"

	"github.com/pkg/errors"
)

// HomingStatus is the state of a homing or calibration run.
type HomingStatus int

const (
	HomingNotInitialized HomingStatus = iota
	HomingRunning
	HomingSucceeded
	HomingFailed
)

func (s HomingStatus) String() string {
	switch s {
	case HomingNotInitialized:
		return "NOT_INITIALIZED"
	case HomingRunning:
		return "RUNNING"
	case HomingSucceeded:
		return "SUCCEEDED"
	case HomingFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s ends a run.
func (s HomingStatus) Terminal() bool {
	return s == HomingSucceeded || s == HomingFailed
}

type homingState struct {
	jointID int

	searchDistanceLimit float64
	homeOffset          float64
	profileStepSize     float64

	lastIndexTime int64
	target        float64
	stepCount     uint32

	startPosition float64
	endPosition   float64

	status HomingStatus
}

// Homing returns the current homing status.
func (j *Joint) Homing() HomingStatus { return j.homing.status }

// HomingTarget returns the position the homing profile is driving toward.
func (j *Joint) HomingTarget() float64 { return j.homing.target }

// InitHoming starts an index search from the current position.
// The zero angle is reset; the search moves by profileStepSize every tick
// until an index pulse is seen or searchDistanceLimit is covered.
func (j *Joint) InitHoming(jointID int, searchDistanceLimit, homeOffset, profileStepSize float64) error {
	if profileStepSize == 0 || math.IsNaN(profileStepSize) || math.IsInf(profileStepSize, 0) {
		return errors.Errorf("joint %d: homing profile step size must be finite and non-zero", jointID)
	}
	if math.IsNaN(searchDistanceLimit) || math.IsInf(searchDistanceLimit, 0) {
		return errors.Errorf("joint %d: homing search distance limit must be finite", jointID)
	}

	j.SetZeroAngle(0)

	start := j.MeasuredAngle()
	j.homing = homingState{
		jointID:             jointID,
		searchDistanceLimit: searchDistanceLimit,
		homeOffset:          homeOffset,
		profileStepSize:     profileStepSize,
		lastIndexTime:       j.IndexTimeIndex(),
		target:              start,
		startPosition:       start,
		status:              HomingRunning,
	}

	j.logger.Infow("homing started",
		"joint", jointID,
		"start", start,
		"limit", searchDistanceLimit,
		"step", profileStepSize)
	return nil
}

// UpdateHoming advances homing by one control tick and stages the torque
// for it. The caller sends it.
func (j *Joint) UpdateHoming() (HomingStatus, error) {
	h := &j.homing

	switch h.status {
	case HomingNotInitialized:
		err := j.SetTorque(0)
		if sendErr := j.SendTorque(); err == nil {
			err = sendErr
		}
		j.logger.Errorw("homing is not initialized", "joint", j.id)
		if err != nil {
			return h.status, err
		}
		return h.status, errors.Wrapf(ErrHomingNotInitialized, "joint %d", j.id)

	case HomingFailed:
		return h.status, j.SetTorque(0)

	case HomingSucceeded:
		return h.status, j.SetTorque(j.ExecutePositionController(h.target))

	case HomingRunning:
		h.stepCount++
		h.target += h.profileStepSize

		if h.stepCount >= h.maxSteps() {
			h.status = HomingFailed
			j.logger.Errorw("homing failed to find index within distance limit",
				"joint", h.jointID,
				"steps", h.stepCount,
				"limit", h.searchDistanceLimit)
			return h.status, j.SetTorque(0)
		}

		if err := j.SetTorque(j.ExecutePositionController(h.target)); err != nil {
			return h.status, err
		}

		if j.IndexTimeIndex() > h.lastIndexTime {
			indexAngle := j.MeasuredIndexAngle()
			h.endPosition = indexAngle

			j.SetZeroAngle(indexAngle + h.homeOffset)
			h.target -= j.zeroAngle
			h.status = HomingSucceeded

			j.logger.Infow("homing succeeded",
				"joint", h.jointID,
				"index_angle", indexAngle,
				"zero_angle", j.zeroAngle,
				"steps", h.stepCount)
		}
		return h.status, nil
	}

	return h.status, errors.Errorf("joint %d: unknown homing status %d", j.id, h.status)
}

// HomingAtCurrentPosition declares the current position to be offset
// radians from home, without searching.
func (j *Joint) HomingAtCurrentPosition(offset float64) {
	j.SetZeroAngle(0)
	raw := j.MeasuredAngle()
	j.SetZeroAngle(raw + offset)

	j.homing.target = j.MeasuredAngle()
	j.homing.startPosition = raw
	j.homing.endPosition = raw
	j.homing.status = HomingSucceeded
}

// DistanceTravelledDuringHoming is the distance from the homing start to the
// index pulse. It requires a succeeded homing.
func (j *Joint) DistanceTravelledDuringHoming() (float64, error) {
	if j.homing.status != HomingSucceeded {
		return 0, errors.Wrapf(ErrHomingNotSucceeded, "joint %d: status %s", j.id, j.homing.status)
	}
	return j.homing.endPosition - j.homing.startPosition, nil
}

// maxSteps is the number of profile steps that covers the distance limit.
func (h *homingState) maxSteps() uint32 {
	n := math.Abs(h.searchDistanceLimit / h.profileStepSize)
	if n >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
