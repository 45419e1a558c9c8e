// internal/writer/status_writer_test.go
package writer

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/config"
	"github.com/tamzrod/blmc-driver/internal/status"
)

// ---- fake endpoint client ----

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	writes []writeCall
	fail   bool
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("endpoint down")
	}
	cp := make([]uint16, len(regs))
	copy(cp, regs)
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: cp})
	return nil
}

func (f *fakeEndpointClient) last() writeCall { return f.writes[len(f.writes)-1] }

func newTestWriter(t *testing.T, cli endpointClient) *jointStatusWriter {
	t.Helper()
	sw, err := NewJointStatusWriter(StatusPlan{
		Endpoint:  "status-endpoint",
		UnitID:    1,
		BaseSlot:  2,
		JointName: "HIP-FL",
	}, cli)
	if err != nil {
		t.Fatalf("NewJointStatusWriter err=%v", err)
	}
	return sw
}

func okSnapshot() status.Snapshot {
	return status.Snapshot{Health: status.HealthOK, Angle: 0.5, Velocity: 0, Torque: 0.1}
}

// ---- tests ----

func TestNewJointStatusWriter_Rejects(t *testing.T) {
	if _, err := NewJointStatusWriter(StatusPlan{Endpoint: "x"}, nil); err == nil {
		t.Fatalf("expected error for missing client")
	}
	if _, err := NewJointStatusWriter(StatusPlan{UnitID: 256}, &fakeEndpointClient{}); err == nil {
		t.Fatalf("expected error for unit id 256")
	}
	if _, err := NewJointStatusWriter(StatusPlan{BaseSlot: 4000}, &fakeEndpointClient{}); err == nil {
		t.Fatalf("expected error for base slot beyond address space")
	}
}

func TestJointNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newTestWriter(t, cli)

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(okSnapshot()); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}
	first := cli.last()
	if len(first.regs) != status.SlotsPerJoint {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerJoint, len(first.regs))
	}
	if first.addr != 2*status.SlotsPerJoint || first.unitID != 1 {
		t.Fatalf("full block at unit=%d addr=%d", first.unitID, first.addr)
	}

	name := status.EncodeName("HIP-FL")
	for i := 0; i < status.SlotJointNameSlots; i++ {
		slot := status.SlotJointNameStart + i
		if first.regs[slot] != name[i] {
			t.Fatalf("joint name slot %d mismatch: got=%d want=%d", slot, first.regs[slot], name[i])
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	next := okSnapshot()
	next.Health = status.HealthError
	next.LastErrorCode = status.ErrorSafetyViolation
	if err := sw.WriteStatus(next); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	if len(cli.writes) != 3 {
		t.Fatalf("expected 2 incremental writes, got %d", len(cli.writes)-1)
	}
	for _, w := range cli.writes[1:] {
		if len(w.regs) == status.SlotsPerJoint {
			t.Fatalf("joint name should not be rewritten on incremental update")
		}
	}
	if cli.writes[1].addr != 2*status.SlotsPerJoint+status.SlotHealthCode {
		t.Fatalf("health addr: got=%d", cli.writes[1].addr)
	}
	if cli.writes[2].regs[0] != status.ErrorSafetyViolation {
		t.Fatalf("last error: got=%d", cli.writes[2].regs[0])
	}
}

func TestUnchangedSnapshotWritesNothing(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newTestWriter(t, cli)

	_ = sw.WriteStatus(okSnapshot())
	_ = sw.WriteStatus(okSnapshot())

	if len(cli.writes) != 1 {
		t.Fatalf("expected only the full assert, got %d writes", len(cli.writes))
	}
}

func TestAngleWrittenAsTwoRegisters(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newTestWriter(t, cli)
	_ = sw.WriteStatus(okSnapshot())

	s := okSnapshot()
	s.Angle = math.NaN()
	if err := sw.WriteStatus(s); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	w := cli.last()
	if w.addr != 2*status.SlotsPerJoint+status.SlotAngle || len(w.regs) != 2 {
		t.Fatalf("angle write: addr=%d regs=%v", w.addr, w.regs)
	}
	if got := int32(uint32(w.regs[0])<<16 | uint32(w.regs[1])); got != status.NoData {
		t.Fatalf("NaN angle must be NoData, got %d", got)
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newTestWriter(t, cli)

	errSnap := okSnapshot()
	errSnap.Health = status.HealthError
	errSnap.LastErrorCode = 42
	errSnap.SecondsInError = 3
	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	// recovery: health, last error and seconds all change
	if err := sw.WriteStatus(okSnapshot()); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	w := cli.last()
	wantAddr := uint16(2*status.SlotsPerJoint + status.SlotSecondsInError)
	if w.addr != wantAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", w.addr, wantAddr)
	}
	if len(w.regs) != 1 || w.regs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: %v", w.regs)
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newTestWriter(t, cli)
	_ = sw.WriteStatus(okSnapshot())

	cli.fail = true
	s := okSnapshot()
	s.Torque = 0.2
	if err := sw.WriteStatus(s); err == nil {
		t.Fatalf("expected error while endpoint is down")
	}

	cli.fail = false
	if err := sw.WriteStatus(s); err != nil {
		t.Fatalf("write after recovery failed: %v", err)
	}
	if len(cli.last().regs) != status.SlotsPerJoint {
		t.Fatalf("expected full block re-assert after failure")
	}
}

func TestBuildStatusPlans(t *testing.T) {
	slot := uint16(3)
	d := config.DriverConfig{
		StatusMemory: config.StatusMemoryConfig{Endpoint: "10.0.0.5:502", UnitID: 9},
		Joints: []config.JointConfig{
			{ID: 1, Name: "hip"},
			{ID: 2, Name: "knee", StatusSlot: &slot},
		},
	}

	plans := BuildStatusPlans(d)
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	p := plans[2]
	if p.Endpoint != "10.0.0.5:502" || p.UnitID != 9 || p.BaseSlot != 3 || p.JointName != "knee" {
		t.Fatalf("plan: %+v", p)
	}
}
