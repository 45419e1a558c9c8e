// internal/writer/modbus/client.go
package modbus

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
)

// Per-request register limits of the Modbus application protocol.
const (
	MaxWriteRegisters = 123 // FC16
	MaxReadRegisters  = 125 // FC3
)

// MemoryClient talks to the status memory over one TCP connection.
// Requests are serialized: the unit id is set on the shared handler per call.
type MemoryClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Dial connects to the status memory at cfg.Endpoint.
func Dial(cfg Config) (*MemoryClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("status memory: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "status memory: connect %s", cfg.Endpoint)
	}

	return &MemoryClient{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *MemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters stores regs at addr (FC16) on unit unitID.
func (c *MemoryClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 || len(regs) > MaxWriteRegisters {
		return errors.Errorf("status memory: cannot write %d registers in one request", len(regs))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler.SlaveId = unitID

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), toBytes(regs))
	return errors.Wrapf(err, "status memory: write unit=%d addr=%d qty=%d", unitID, addr, len(regs))
}

// ReadRegisters loads qty registers from addr (FC3) on unit unitID.
func (c *MemoryClient) ReadRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	if qty == 0 || qty > MaxReadRegisters {
		return nil, errors.Errorf("status memory: cannot read %d registers in one request", qty)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler.SlaveId = unitID

	data, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, errors.Wrapf(err, "status memory: read unit=%d addr=%d qty=%d", unitID, addr, qty)
	}
	return fromBytes(data, qty)
}

func toBytes(regs []uint16) []byte {
	out := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[2*i:], r)
	}
	return out
}

func fromBytes(data []byte, qty uint16) ([]uint16, error) {
	if len(data) != 2*int(qty) {
		return nil, errors.Errorf("status memory: got %d bytes for %d registers", len(data), qty)
	}
	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return regs, nil
}
