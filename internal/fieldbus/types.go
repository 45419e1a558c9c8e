// internal/fieldbus/types.go
package fieldbus

import "github.com/pkg/errors"

// Sample is one motor's measurements from one bus cycle.
// Units: A, rad, rad/s (motor side, before gearing).
type Sample struct {
	Current  float64
	Position float64
	Velocity float64

	// IndexSeen is true when an encoder index pulse was observed since the
	// previous cycle; IndexPosition is the motor position latched at the pulse.
	IndexSeen     bool
	IndexPosition float64
}

// Transport abstracts the board-level operations the bus I/O loop needs.
// Implementations must be safe for concurrent use: the poll loop and the
// per-motor senders run on separate goroutines.
type Transport interface {
	// ReadSamples returns one Sample per motor, or an error for the whole cycle.
	ReadSamples() ([]Sample, error)

	// WriteCurrent commands a current target (A) to one motor.
	WriteCurrent(motor int, amps float64) error

	Close() error
}

// ErrNoData is returned by transports that have not received a fresh frame
// since the previous cycle.
var ErrNoData = errors.New("fieldbus: no new data")
