// internal/status/encode_test.go
package status

import (
	"math"
	"testing"
)

func TestEncode_Layout(t *testing.T) {
	regs := Encode(Snapshot{
		Health:         HealthError,
		LastErrorCode:  ErrorSafetyViolation,
		SecondsInError: 12,
		Homing:         2,
		Angle:          1.5,
		Velocity:       -0.25,
		Torque:         math.NaN(),
	})

	if len(regs) != SlotsPerJoint {
		t.Fatalf("block size: got=%d", len(regs))
	}
	if regs[SlotHealthCode] != HealthError || regs[SlotLastErrorCode] != ErrorSafetyViolation ||
		regs[SlotSecondsInError] != 12 || regs[SlotHomingStatus] != 2 {
		t.Fatalf("status slots: %v", regs[:4])
	}

	angle := int32(uint32(regs[SlotAngle])<<16 | uint32(regs[SlotAngle+1]))
	if angle != 1500000 {
		t.Fatalf("angle: got=%d", angle)
	}
	vel := int32(uint32(regs[SlotVelocity])<<16 | uint32(regs[SlotVelocity+1]))
	if vel != -250000 {
		t.Fatalf("velocity: got=%d", vel)
	}
	torque := int32(uint32(regs[SlotTorque])<<16 | uint32(regs[SlotTorque+1]))
	if torque != NoData {
		t.Fatalf("NaN torque must encode as NoData, got %d", torque)
	}

	for i := SlotReserved; i < SlotsPerJoint; i++ {
		if regs[i] != 0 {
			t.Fatalf("slot %d must be zero, got %d", i, regs[i])
		}
	}
}

func TestScaled_Saturates(t *testing.T) {
	if got := Scaled(1e9, AngleScale); got != math.MaxInt32 {
		t.Fatalf("upper: got=%d", got)
	}
	if got := Scaled(-1e9, AngleScale); got != math.MinInt32+1 {
		t.Fatalf("lower must stay clear of NoData: got=%d", got)
	}
	if got := Scaled(0.0015, TorqueScale); got != 2 {
		t.Fatalf("rounding: got=%d", got)
	}
}

func TestEncodeName(t *testing.T) {
	regs := EncodeName("HIP\x01-front-left-leg")
	if len(regs) != SlotJointNameSlots {
		t.Fatalf("name slots: got=%d", len(regs))
	}
	if regs[0] != uint16('H')<<8|uint16('I') {
		t.Fatalf("first pair: %#04x", regs[0])
	}
	if regs[1] != uint16('P')<<8|uint16('?') {
		t.Fatalf("non-printable must be replaced: %#04x", regs[1])
	}
	// 16 chars kept: "HIP?-front-left-"
	if regs[7] != uint16('t')<<8|uint16('-') {
		t.Fatalf("last pair: %#04x", regs[7])
	}

	short := EncodeName("K")
	if short[0] != uint16('K')<<8 || short[1] != 0 {
		t.Fatalf("short name padding: %v", short)
	}
}

func TestDecode_InvertsEncode(t *testing.T) {
	in := Snapshot{
		Health:   HealthOK,
		Homing:   2,
		Angle:    -0.123456,
		Velocity: 3.5,
		Torque:   math.NaN(),
	}
	regs := Encode(in)
	copy(regs[SlotJointNameStart:], EncodeName("knee"))

	out, name, err := Decode(regs)
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if name != "knee" {
		t.Fatalf("name: got=%q", name)
	}
	if out.Health != HealthOK || out.Homing != 2 {
		t.Fatalf("codes: %+v", out)
	}
	if math.Abs(out.Angle-in.Angle) > 1e-6 || out.Velocity != 3.5 {
		t.Fatalf("values: %+v", out)
	}
	if !math.IsNaN(out.Torque) {
		t.Fatalf("NoData must decode as NaN, got %f", out.Torque)
	}

	if _, _, err := Decode(regs[:5]); err == nil {
		t.Fatalf("expected error for short block")
	}
}
