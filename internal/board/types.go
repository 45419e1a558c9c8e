// internal/board/types.go
package board

import (
	"time"

	"github.com/tamzrod/blmc-driver/internal/fieldbus"
)

// Config is the minimal runtime config the board needs.
type Config struct {
	BoardID       string
	Motors        int
	Interval      time.Duration
	HistoryLength int

	// MaxFailedCycles consecutive failed polls stop Run with ErrBusLost.
	// Zero disables the limit.
	MaxFailedCycles int
}

// PollResult is a snapshot produced by one bus cycle.
type PollResult struct {
	BoardID string
	At      time.Time

	// TimeIndex is the history index the cycle was recorded under; -1 on failure.
	TimeIndex int64

	Samples []fieldbus.Sample
	Err     error // non-nil means the bus cycle failed
}
