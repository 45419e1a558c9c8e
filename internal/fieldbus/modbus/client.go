// internal/fieldbus/modbus/client.go
package modbus

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/fieldbus"
)

// Register map (per motor block, input registers, FC 4):
//
//	+0     current        int16  mA
//	+1..2  position       int32  1e-4 rad
//	+3..4  velocity       int32  1e-4 rad/s
//	+5     index count    uint16 incremented by the board on every index pulse
//	+6..7  index position int32  1e-4 rad, latched at the last pulse
//
// Current targets are holding registers (FC 16), one int16 mA register per
// motor starting at address 0.
const (
	RegsPerMotor = 8

	regCurrent       = 0
	regPosition      = 1
	regVelocity      = 3
	regIndexCount    = 5
	regIndexPosition = 6

	CurrentLSB  = 0.001  // A
	PositionLSB = 0.0001 // rad
	VelocityLSB = 0.0001 // rad/s
)

// handler is the part of goburrow's TCP/RTU handlers the client manages.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Client implements fieldbus.Transport for a motor board on a Modbus unit.
// It serializes requests; goburrow handlers are not safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	handler handler
	client  modbus.Client
	motors  int

	// last index counter per motor; -1 until the first read
	lastIndex []int32
}

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	Motors   int

	// RTU only: a non-zero BaudRate selects a serial RTU handler on Endpoint.
	BaudRate int
}

var _ fieldbus.Transport = (*Client)(nil)

// New creates a connected Modbus client (TCP, or RTU when BaudRate is set).
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("fieldbus modbus: endpoint required")
	}
	if cfg.Motors <= 0 {
		return nil, errors.New("fieldbus modbus: motors must be > 0")
	}

	var h handler
	if cfg.BaudRate > 0 {
		rtu := modbus.NewRTUClientHandler(cfg.Endpoint)
		rtu.BaudRate = cfg.BaudRate
		rtu.DataBits = 8
		rtu.Parity = "N"
		rtu.StopBits = 1
		rtu.SlaveId = cfg.UnitID
		rtu.Timeout = cfg.Timeout
		h = rtu
	} else {
		tcp := modbus.NewTCPClientHandler(cfg.Endpoint)
		tcp.SlaveId = cfg.UnitID
		tcp.Timeout = cfg.Timeout
		h = tcp
	}

	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "fieldbus modbus: connect %s", cfg.Endpoint)
	}

	return newClient(h, modbus.NewClient(h), cfg.Motors), nil
}

func newClient(h handler, c modbus.Client, motors int) *Client {
	last := make([]int32, motors)
	for i := range last {
		last[i] = -1
	}
	return &Client{
		handler:   h,
		client:    c,
		motors:    motors,
		lastIndex: last,
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- fieldbus.Transport ----

// ReadSamples reads all motor blocks in one request.
func (c *Client) ReadSamples() ([]fieldbus.Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	qty := uint16(c.motors * RegsPerMotor)
	raw, err := c.client.ReadInputRegisters(0, qty)
	if err != nil {
		return nil, errors.Wrap(err, "fieldbus modbus: read input registers")
	}
	if len(raw) != int(qty)*2 {
		return nil, errors.Errorf("fieldbus modbus: short read: got=%d bytes want=%d", len(raw), int(qty)*2)
	}

	regs := unpackRegisters(raw)
	return c.decodeLocked(regs), nil
}

// WriteCurrent writes one motor's current target register.
func (c *Client) WriteCurrent(motor int, amps float64) error {
	if motor < 0 || motor >= c.motors {
		return errors.Errorf("fieldbus modbus: motor %d out of range", motor)
	}
	reg, err := encodeCurrent(amps)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.client.WriteMultipleRegisters(uint16(motor), 1, packRegisters([]uint16{reg}))
	return errors.Wrapf(err, "fieldbus modbus: write current motor %d", motor)
}

// ---- helpers (pure geometry) ----

func (c *Client) decodeLocked(regs []uint16) []fieldbus.Sample {
	out := make([]fieldbus.Sample, c.motors)
	for m := 0; m < c.motors; m++ {
		b := regs[m*RegsPerMotor : (m+1)*RegsPerMotor]

		s := fieldbus.Sample{
			Current:  float64(int16(b[regCurrent])) * CurrentLSB,
			Position: float64(int32At(b, regPosition)) * PositionLSB,
			Velocity: float64(int32At(b, regVelocity)) * VelocityLSB,
		}

		count := int32(b[regIndexCount])
		if c.lastIndex[m] >= 0 && count != c.lastIndex[m] {
			s.IndexSeen = true
			s.IndexPosition = float64(int32At(b, regIndexPosition)) * PositionLSB
		}
		c.lastIndex[m] = count

		out[m] = s
	}
	return out
}

func encodeCurrent(amps float64) (uint16, error) {
	if math.IsNaN(amps) || math.IsInf(amps, 0) {
		return 0, errors.Errorf("fieldbus modbus: current %f not finite", amps)
	}
	ma := math.Round(amps / CurrentLSB)
	if ma > math.MaxInt16 || ma < math.MinInt16 {
		return 0, errors.Errorf("fieldbus modbus: current %f A out of register range", amps)
	}
	return uint16(int16(ma)), nil
}

func int32At(regs []uint16, at int) int32 {
	return int32(uint32(regs[at])<<16 | uint32(regs[at+1]))
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[2*i:], r)
	}
	return out
}
