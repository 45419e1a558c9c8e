// internal/config/validate.go
package config

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	d := cfg.Driver

	if len(d.Boards) == 0 {
		return errors.New("config: at least one board required")
	}

	// ------------------------------------------------------------
	// BOARD VALIDATION
	// ------------------------------------------------------------

	boards := make(map[string]BoardConfig, len(d.Boards))
	for _, b := range d.Boards {
		if b.ID == "" {
			return errors.New("config: board id required")
		}
		if _, exists := boards[b.ID]; exists {
			return errors.Errorf("config: duplicate board id %q", b.ID)
		}
		if b.Endpoint == "" {
			return errors.Errorf("board %q: endpoint required", b.ID)
		}
		if b.Motors <= 0 {
			return errors.Errorf("board %q: motors must be > 0", b.ID)
		}
		if b.Poll.IntervalMs < 0 || b.TimeoutMs < 0 || b.HistoryLength < 0 {
			return errors.Errorf("board %q: negative interval, timeout or history length", b.ID)
		}
		if b.Poll.MaxFailedCycles < 0 {
			return errors.Errorf("board %q: poll max_failed_cycles must be >= 0", b.ID)
		}

		switch b.Transport {
		case TransportModbusTCP:
		case TransportModbusRTU:
			if b.BaudRate < 0 {
				return errors.Errorf("board %q: baud_rate must be >= 0", b.ID)
			}
		case TransportCAN:
			// BLMC CAN frames carry exactly two motors.
			if b.Motors != 2 {
				return errors.Errorf("board %q: can transport drives exactly 2 motors, got %d", b.ID, b.Motors)
			}
		default:
			return errors.Errorf("board %q: unknown transport %q", b.ID, b.Transport)
		}

		boards[b.ID] = b
	}

	// ------------------------------------------------------------
	// JOINT VALIDATION
	// ------------------------------------------------------------

	// key = board | motor
	motorOwner := make(map[string]int)
	jointIDs := make(map[int]struct{})
	statusSlots := make(map[uint16]int)

	for _, j := range d.Joints {
		if _, exists := jointIDs[j.ID]; exists {
			return errors.Errorf("config: duplicate joint id %d", j.ID)
		}
		jointIDs[j.ID] = struct{}{}

		for i := 0; i < len(j.Name); i++ {
			if j.Name[i] > 0x7F {
				return errors.Errorf("joint %d: name must contain ASCII characters only", j.ID)
			}
		}

		b, ok := boards[j.Board]
		if !ok {
			return errors.Errorf("joint %d: unknown board %q", j.ID, j.Board)
		}
		if j.Motor < 0 || j.Motor >= b.Motors {
			return errors.Errorf("joint %d: motor %d out of range for board %q (%d motors)", j.ID, j.Motor, b.ID, b.Motors)
		}

		key := fmt.Sprintf("%s|%d", j.Board, j.Motor)
		if prev, exists := motorOwner[key]; exists {
			return errors.Errorf(
				"motor collision: board=%s motor=%d used by joints %d and %d",
				j.Board, j.Motor, prev, j.ID,
			)
		}
		motorOwner[key] = j.ID

		if !positive(j.MotorConstant) {
			return errors.Errorf("joint %d: motor_constant must be > 0", j.ID)
		}
		if !positive(j.GearRatio) {
			return errors.Errorf("joint %d: gear_ratio must be > 0", j.ID)
		}
		if !positive(j.MaxCurrent) {
			return errors.Errorf("joint %d: max_current must be > 0", j.ID)
		}
		if j.Gains.Kp < 0 || j.Gains.Kd < 0 {
			return errors.Errorf("joint %d: gains must be >= 0", j.ID)
		}

		// homing is opt-in: an all-zero block means "not configured"
		if j.Homing != (HomingConfig{}) {
			if j.Homing.ProfileStepSize == 0 || math.IsNaN(j.Homing.ProfileStepSize) {
				return errors.Errorf("joint %d: homing profile_step_size must be non-zero", j.ID)
			}
			if j.Homing.SearchDistanceLimit == 0 {
				return errors.Errorf("joint %d: homing search_distance_limit must be non-zero", j.ID)
			}
		}

		if j.StatusSlot != nil {
			if d.StatusMemory.Endpoint == "" {
				return errors.Errorf("joint %d: status_slot is set but status_memory.endpoint is empty", j.ID)
			}
			if prev, exists := statusSlots[*j.StatusSlot]; exists {
				return errors.Errorf(
					"status_slot collision: slot=%d used by joints %d and %d",
					*j.StatusSlot, prev, j.ID,
				)
			}
			statusSlots[*j.StatusSlot] = j.ID
		}
	}

	if d.Control.PeriodMs < 0 {
		return errors.New("config: control period_ms must be >= 0")
	}
	if d.Control.ReportIntervalMs < 0 {
		return errors.New("config: control report_interval_ms must be >= 0")
	}
	if d.Control.StaleAfterMs < 0 {
		return errors.New("config: control stale_after_ms must be >= 0")
	}

	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
