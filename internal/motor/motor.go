// internal/motor/motor.go
package motor

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/board"
	"github.com/tamzrod/blmc-driver/internal/history"
)

// Measurement identifies one measurement history of a motor.
type Measurement int

const (
	Current Measurement = iota
	Position
	Velocity
	EncoderIndex
)

func (m Measurement) String() string {
	switch m {
	case Current:
		return "current"
	case Position:
		return "position"
	case Velocity:
		return "velocity"
	case EncoderIndex:
		return "encoder_index"
	default:
		return "unknown"
	}
}

// Interface is what a joint needs from a motor.
type Interface interface {
	SetCurrentTarget(amps float64)
	SendIfInputChanged() error
	Measurement(id Measurement) history.History
	SentCurrentTarget() history.History
}

// Motor is one motor channel of a board.
// It is owned by a single control goroutine; the board goroutine only
// touches it through the board's exchanges and histories.
type Motor struct {
	b     *board.Board
	index int

	mu      sync.Mutex
	target  float64
	sent    float64
	hasSent bool

	// cycle counter of the last measurement waited for
	waitMu   sync.Mutex
	seen     uint64
	tracking bool
}

var _ Interface = (*Motor)(nil)

// New binds a motor to channel index of b.
func New(b *board.Board, index int) (*Motor, error) {
	if b == nil {
		return nil, errors.New("motor: board required")
	}
	if index < 0 || index >= b.Motors() {
		return nil, errors.Errorf("motor: index %d out of range for board %s (%d motors)", index, b.ID(), b.Motors())
	}
	return &Motor{b: b, index: index}, nil
}

// SetCurrentTarget stages a current target; nothing is sent until
// SendIfInputChanged.
func (m *Motor) SetCurrentTarget(amps float64) {
	m.mu.Lock()
	m.target = amps
	m.mu.Unlock()
}

// SendIfInputChanged submits the staged target if it differs from the last
// submitted one, or if nothing was submitted yet.
func (m *Motor) SendIfInputChanged() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasSent && m.sent == m.target {
		return nil
	}
	m.b.SubmitCurrent(m.index, m.target)
	m.sent = m.target
	m.hasSent = true
	return nil
}

// Measurement returns the history for id. Unknown ids panic.
func (m *Motor) Measurement(id Measurement) history.History {
	switch id {
	case Current:
		return m.b.CurrentHistory(m.index)
	case Position:
		return m.b.PositionHistory(m.index)
	case Velocity:
		return m.b.VelocityHistory(m.index)
	case EncoderIndex:
		return m.b.IndexHistory(m.index)
	default:
		panic("motor: unknown measurement id")
	}
}

// SentCurrentTarget is the history of currents the bus actually wrote.
func (m *Motor) SentCurrentTarget() history.History {
	return m.b.SentHistory(m.index)
}

// WaitForMeasurement blocks until the next bus cycle has recorded this motor.
// The first call waits for the cycle after it; later calls wait for the
// cycle after the previous one, so a cycle published while the caller was
// busy is returned as an exchange consistency error. The count moves on
// either way and the next call waits for a fresh cycle.
func (m *Motor) WaitForMeasurement(ctx context.Context) error {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()

	if !m.tracking {
		m.seen = m.b.SampleCount(m.index)
		m.tracking = true
	}
	next, err := m.b.WaitForSampleAfter(ctx, m.index, m.seen)
	m.seen = next
	return err
}

// Index returns the board channel.
func (m *Motor) Index() int { return m.index }

// BoardID returns the id of the board the motor lives on.
func (m *Motor) BoardID() string { return m.b.ID() }
