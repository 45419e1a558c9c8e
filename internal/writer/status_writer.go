// internal/writer/status_writer.go
package writer

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/status"
)

// jointStatusWriter keeps the status block of one joint in sync.
// No logic, no interpretation: it only decides between full and
// incremental delivery.
type jointStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	needFull bool
	last     []uint16 // last delivered block, name slots excluded
	nameRegs []uint16
}

var _ StatusWriter = (*jointStatusWriter)(nil)

// NewJointStatusWriter builds a status writer for one joint.
func NewJointStatusWriter(plan StatusPlan, cli endpointClient) (*jointStatusWriter, error) {
	if cli == nil {
		return nil, errors.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	if plan.UnitID > 255 {
		return nil, errors.Errorf("status writer: unit id %d out of range", plan.UnitID)
	}
	if uint32(plan.BaseSlot)*status.SlotsPerJoint+status.SlotsPerJoint > 1<<16 {
		return nil, errors.Errorf("status writer: base slot %d out of range", plan.BaseSlot)
	}

	return &jointStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: status.EncodeName(plan.JointName),
	}, nil
}

// field is one independently written register range of the block.
type field struct {
	name  string
	start int
	n     int
}

var fields = []field{
	{"health", status.SlotHealthCode, 1},
	{"last_error", status.SlotLastErrorCode, 1},
	{"seconds_in_error", status.SlotSecondsInError, 1},
	{"homing", status.SlotHomingStatus, 1},
	{"angle", status.SlotAngle, 2},
	{"velocity", status.SlotVelocity, 2},
	{"torque", status.SlotTorque, 2},
}

// WriteStatus delivers a joint status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *jointStatusWriter) WriteStatus(s status.Snapshot) error {
	regs := status.Encode(s)
	base := sw.baseAddr()
	unitID := uint8(sw.plan.UnitID)

	if sw.needFull {
		full := make([]uint16, len(regs))
		copy(full, regs)
		copy(full[status.SlotJointNameStart:], sw.nameRegs)

		if err := sw.cli.WriteRegisters(unitID, base, full); err != nil {
			sw.needFull = true
			return errors.Wrap(err, "status writer: full block write failed")
		}

		sw.needFull = false
		sw.last = regs
		return nil
	}

	var errs []string
	for _, f := range fields {
		want := regs[f.start : f.start+f.n]
		if equalRegs(sw.last[f.start:f.start+f.n], want) {
			continue
		}
		if err := sw.cli.WriteRegisters(unitID, base+uint16(f.start), want); err != nil {
			errs = append(errs, f.name+" write failed: "+err.Error())
			continue
		}
		copy(sw.last[f.start:], want)
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (sw *jointStatusWriter) baseAddr() uint16 {
	return sw.plan.BaseSlot * status.SlotsPerJoint
}

func equalRegs(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
