// internal/control/reporter.go
package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/tamzrod/blmc-driver/internal/status"
	"github.com/tamzrod/blmc-driver/internal/writer"
)

// Reporter owns the seconds-in-error bookkeeping of every loop and pushes
// their snapshots to the status writers.
type Reporter struct {
	loops    map[int]*Loop
	writers  map[int]writer.StatusWriter
	interval time.Duration
	logger   golog.Logger

	mu      sync.Mutex
	seconds map[int]uint16
}

// NewReporter reports loops (keyed by joint id) to the writers with the same key.
// Loops without a writer are still tracked for Snapshots.
func NewReporter(loops map[int]*Loop, writers map[int]writer.StatusWriter, interval time.Duration, logger golog.Logger) *Reporter {
	return &Reporter{
		loops:    loops,
		writers:  writers,
		interval: interval,
		logger:   logger,
		seconds:  make(map[int]uint16, len(loops)),
	}
}

// Snapshot is the loop's snapshot with the reporter's seconds in error.
func (r *Reporter) Snapshot(id int) status.Snapshot {
	s := r.loops[id].Snapshot()
	r.mu.Lock()
	s.SecondsInError = r.seconds[id]
	r.mu.Unlock()
	return s
}

// Run reports until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	// Full block write on start (identity re-assert).
	for id := range r.writers {
		r.write(id, status.Snapshot{
			Health:   status.HealthUnknown,
			Angle:    math.NaN(),
			Velocity: math.NaN(),
			Torque:   math.NaN(),
		})
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for id, l := range r.loops {
				s := l.Snapshot()
				r.mu.Lock()
				if s.Health == status.HealthOK {
					// Reset seconds-in-error on recovery.
					r.seconds[id] = 0
				}
				s.SecondsInError = r.seconds[id]
				r.mu.Unlock()
				r.write(id, s)
			}

		case <-secTicker.C:
			// Tick 1 Hz while not OK.
			r.mu.Lock()
			for id, l := range r.loops {
				if l.Snapshot().Health != status.HealthOK && r.seconds[id] < status.MaxSecondsInError {
					r.seconds[id]++
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *Reporter) write(id int, s status.Snapshot) {
	w, ok := r.writers[id]
	if !ok {
		return
	}
	if err := w.WriteStatus(s); err != nil {
		r.logger.Warnw("status write failed", "joint", id, "error", err)
	}
}
