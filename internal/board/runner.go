// internal/board/runner.go
package board

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrBusLost ends Run after Config.MaxFailedCycles consecutive failed polls.
var ErrBusLost = errors.New("board: bus lost")

// Run is the bus I/O goroutine of one board: a ticker-driven poll loop plus
// one sender per motor draining the command exchange.
// Poll results are offered on out when it is non-nil; a slow reader misses
// results rather than stalling the bus.
// Run commands zero current on every motor before it returns. It returns
// ctx's error on cancellation, or ErrBusLost.
func (b *Board) Run(ctx context.Context, out chan<- PollResult) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for m := range b.motors {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			b.sendLoop(ctx, m)
		}(m)
	}

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-ticker.C:
			before := b.failed.Load()
			res := b.PollOnce()
			if err := b.track(res, before); err != nil {
				cancel(err)
				break poll
			}
			if out == nil {
				continue
			}
			select {
			case out <- res:
			default:
			}
		}
	}

	wg.Wait()
	b.zeroAll()
	return context.Cause(ctx)
}

// track logs the start and end of a failure streak and enforces the
// consecutive failure limit.
func (b *Board) track(res PollResult, before int64) error {
	failed := b.failed.Load()
	switch {
	case res.Err == nil:
		if before > 0 {
			b.logger.Infow("bus recovered", "board", b.cfg.BoardID, "failed_cycles", before)
		}
		return nil
	case failed == 1:
		b.logger.Warnw("bus cycle failed", "board", b.cfg.BoardID, "error", res.Err)
	default:
		b.logger.Debugw("bus cycle failed", "board", b.cfg.BoardID, "consecutive", failed, "error", res.Err)
	}

	if b.cfg.MaxFailedCycles > 0 && failed >= int64(b.cfg.MaxFailedCycles) {
		b.logger.Errorw("bus lost, zeroing motors",
			"board", b.cfg.BoardID, "consecutive", failed, "error", res.Err)
		return errors.Wrapf(ErrBusLost, "board %s: %d failed cycles, last: %v", b.cfg.BoardID, failed, res.Err)
	}
	return nil
}

// sendLoop forwards the newest command for motor to the transport,
// including one submitted before Run started. Commands replaced while a
// write was in flight are counted, not sent.
func (b *Board) sendLoop(ctx context.Context, motor int) {
	var seen uint64
	for {
		next, err := b.commands.WaitForNewer(ctx, motor, seen)
		if err != nil {
			return
		}
		if skipped := next - seen - 1; skipped > 0 {
			b.motors[motor].superseded.Add(skipped)
		}
		seen = next
		b.send(motor, b.commands.Get(motor))
	}
}

func (b *Board) send(motor int, amps float64) {
	if err := b.tr.WriteCurrent(motor, amps); err != nil {
		b.logger.Warnw("current write failed",
			"board", b.cfg.BoardID, "motor", motor, "amps", amps, "error", err)
		return
	}
	b.motors[motor].sent.Append(amps)
}

func (b *Board) zeroAll() {
	for m := range b.motors {
		b.send(m, 0)
	}
}
