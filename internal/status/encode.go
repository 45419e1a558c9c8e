// internal/status/encode.go
package status

import (
	"math"

	"github.com/pkg/errors"
)

// Encode converts a Snapshot into a full joint status block.
// The joint name slots are left zero; see EncodeName.
// Layout is protocol-locked. No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerJoint)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotHomingStatus] = s.Homing

	copy(regs[SlotAngle:], Int32Regs(Scaled(s.Angle, AngleScale)))
	copy(regs[SlotVelocity:], Int32Regs(Scaled(s.Velocity, VelocityScale)))
	copy(regs[SlotTorque:], Int32Regs(Scaled(s.Torque, TorqueScale)))

	return regs
}

// Scaled converts v to a saturated fixed-point int32. NaN maps to NoData.
func Scaled(v, scale float64) int32 {
	if math.IsNaN(v) {
		return NoData
	}
	x := math.Round(v * scale)
	switch {
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32+1:
		// MinInt32 itself is reserved for NoData
		return math.MinInt32 + 1
	default:
		return int32(x)
	}
}

// Int32Regs splits v into two registers, high word first.
func Int32Regs(v int32) []uint16 {
	u := uint32(v)
	return []uint16{uint16(u >> 16), uint16(u)}
}

// EncodeName packs up to JointNameMaxChars ASCII characters into
// SlotJointNameSlots registers, two characters per register, big-endian.
// Non-printable bytes are replaced by '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotJointNameSlots)

	b := []byte(name)
	if len(b) > JointNameMaxChars {
		b = b[:JointNameMaxChars]
	}

	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < JointNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

// Decode is the inverse of Encode plus the joint name.
// NoData values decode as NaN.
func Decode(regs []uint16) (Snapshot, string, error) {
	if len(regs) < SlotsPerJoint {
		return Snapshot{}, "", errors.Errorf("status: block needs %d registers, got %d", SlotsPerJoint, len(regs))
	}

	s := Snapshot{
		Health:         regs[SlotHealthCode],
		LastErrorCode:  regs[SlotLastErrorCode],
		SecondsInError: regs[SlotSecondsInError],
		Homing:         regs[SlotHomingStatus],
		Angle:          unscaled(regs[SlotAngle:], AngleScale),
		Velocity:       unscaled(regs[SlotVelocity:], VelocityScale),
		Torque:         unscaled(regs[SlotTorque:], TorqueScale),
	}

	name := make([]byte, 0, JointNameMaxChars)
	for _, r := range regs[SlotJointNameStart : SlotJointNameEnd+1] {
		for _, c := range []byte{byte(r >> 8), byte(r)} {
			if c == 0 {
				return s, string(name), nil
			}
			name = append(name, c)
		}
	}
	return s, string(name), nil
}

func unscaled(regs []uint16, scale float64) float64 {
	v := int32(uint32(regs[0])<<16 | uint32(regs[1]))
	if v == NoData {
		return math.NaN()
	}
	return float64(v) / scale
}
