// internal/spinner/spinner.go
package spinner

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Spinner paces a loop at a fixed period.
// Deadlines accumulate from the first Spin, so per-iteration work does not
// stretch the period. A deadline that has already passed is re-based on now:
// a late loop resumes at the nominal rate instead of bursting to catch up.
type Spinner struct {
	period time.Duration
	next   time.Time
	timer  *time.Timer
	now    func() time.Time
}

// New creates a spinner. period must be > 0.
func New(period time.Duration) (*Spinner, error) {
	if period <= 0 {
		return nil, errors.Errorf("spinner: period must be > 0, got %s", period)
	}
	return &Spinner{period: period, now: time.Now}, nil
}

// Period returns the configured period.
func (s *Spinner) Period() time.Duration { return s.period }

// Spin blocks until the next deadline or until ctx is done.
func (s *Spinner) Spin(ctx context.Context) error {
	now := s.now()
	if s.next.IsZero() {
		s.next = now
	}
	s.next = s.next.Add(s.period)

	wait := s.next.Sub(now)
	if wait <= 0 {
		// Overran: skip the missed deadlines.
		s.next = now
		return ctx.Err()
	}

	if s.timer == nil {
		s.timer = time.NewTimer(wait)
	} else {
		s.timer.Reset(wait)
	}

	select {
	case <-s.timer.C:
		return nil
	case <-ctx.Done():
		if !s.timer.Stop() {
			select {
			case <-s.timer.C:
			default:
			}
		}
		return ctx.Err()
	}
}

// Reset forgets the accumulated deadline; the next Spin waits a full period.
func (s *Spinner) Reset() {
	s.next = time.Time{}
}
