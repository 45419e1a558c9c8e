// internal/fieldbus/modbus/client_test.go
package modbus

import (
	"math"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
)

// ---- fakes ----

type fakeHandler struct {
	modbus.ClientHandler
	closed bool
}

func (h *fakeHandler) Connect() error { return nil }
func (h *fakeHandler) Close() error   { h.closed = true; return nil }

type fakeModbus struct {
	modbus.Client // unused methods panic

	inputs []uint16
	err    error

	writeAddr uint16
	writeQty  uint16
	writeVal  []byte
}

func (f *fakeModbus) ReadInputRegisters(addr, qty uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return packRegisters(f.inputs[addr : addr+qty]), nil
}

func (f *fakeModbus) WriteMultipleRegisters(addr, qty uint16, value []byte) ([]byte, error) {
	f.writeAddr, f.writeQty, f.writeVal = addr, qty, value
	return nil, nil
}

func motorBlock(currentMA int16, pos, vel int32, indexCount uint16, indexPos int32) []uint16 {
	b := make([]uint16, RegsPerMotor)
	b[regCurrent] = uint16(currentMA)
	b[regPosition], b[regPosition+1] = uint16(uint32(pos)>>16), uint16(uint32(pos))
	b[regVelocity], b[regVelocity+1] = uint16(uint32(vel)>>16), uint16(uint32(vel))
	b[regIndexCount] = indexCount
	b[regIndexPosition], b[regIndexPosition+1] = uint16(uint32(indexPos)>>16), uint16(uint32(indexPos))
	return b
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ---- tests ----

func TestReadSamples_Decode(t *testing.T) {
	fm := &fakeModbus{}
	fm.inputs = append(motorBlock(-1500, 31416, -20000, 7, 0), motorBlock(250, -5, 0, 0, 0)...)
	c := newClient(&fakeHandler{}, fm, 2)

	samples, err := c.ReadSamples()
	if err != nil {
		t.Fatalf("ReadSamples err=%v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	s0 := samples[0]
	if !near(s0.Current, -1.5) || !near(s0.Position, 3.1416) || !near(s0.Velocity, -2.0) {
		t.Fatalf("motor 0 decode: %+v", s0)
	}
	if !near(samples[1].Position, -0.0005) || !near(samples[1].Current, 0.25) {
		t.Fatalf("motor 1 decode: %+v", samples[1])
	}
	if s0.IndexSeen || samples[1].IndexSeen {
		t.Fatalf("first read must not report an index pulse")
	}
}

func TestReadSamples_IndexPulseOnCounterChange(t *testing.T) {
	fm := &fakeModbus{inputs: motorBlock(0, 0, 0, 3, 0)}
	c := newClient(&fakeHandler{}, fm, 1)

	if _, err := c.ReadSamples(); err != nil {
		t.Fatalf("first read err=%v", err)
	}

	fm.inputs = motorBlock(0, 100, 0, 4, 12345)
	samples, err := c.ReadSamples()
	if err != nil {
		t.Fatalf("second read err=%v", err)
	}
	if !samples[0].IndexSeen || !near(samples[0].IndexPosition, 1.2345) {
		t.Fatalf("expected index pulse at 1.2345, got %+v", samples[0])
	}

	samples, _ = c.ReadSamples()
	if samples[0].IndexSeen {
		t.Fatalf("unchanged counter must not report a pulse")
	}
}

func TestReadSamples_Failure(t *testing.T) {
	fm := &fakeModbus{err: errors.New("timeout")}
	c := newClient(&fakeHandler{}, fm, 1)

	if _, err := c.ReadSamples(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestWriteCurrent_Encoding(t *testing.T) {
	fm := &fakeModbus{}
	c := newClient(&fakeHandler{}, fm, 2)

	if err := c.WriteCurrent(1, -0.5); err != nil {
		t.Fatalf("WriteCurrent err=%v", err)
	}
	if fm.writeAddr != 1 || fm.writeQty != 1 {
		t.Fatalf("write geometry: addr=%d qty=%d", fm.writeAddr, fm.writeQty)
	}
	got := int16(uint16(fm.writeVal[0])<<8 | uint16(fm.writeVal[1]))
	if got != -500 {
		t.Fatalf("encoded current: got=%d want=-500", got)
	}
}

func TestWriteCurrent_Rejects(t *testing.T) {
	c := newClient(&fakeHandler{}, &fakeModbus{}, 1)

	if err := c.WriteCurrent(1, 0); err == nil {
		t.Fatalf("expected out-of-range motor error")
	}
	if err := c.WriteCurrent(0, math.NaN()); err == nil {
		t.Fatalf("expected non-finite current error")
	}
	if err := c.WriteCurrent(0, 40); err == nil {
		t.Fatalf("expected register overflow error")
	}
}
