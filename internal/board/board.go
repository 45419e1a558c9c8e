// internal/board/board.go
package board

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/exchange"
	"github.com/tamzrod/blmc-driver/internal/fieldbus"
	"github.com/tamzrod/blmc-driver/internal/history"
)

// motorIO holds the histories of one motor channel.
// The bus goroutine is the only writer.
type motorIO struct {
	current  *history.Series
	position *history.Series
	velocity *history.Series
	index    *history.Series
	sent     *history.Series

	// commands overwritten before the sender got to them
	superseded atomic.Uint64
}

// Board is the bus I/O side of one motor board.
// Measurements flow transport -> histories -> sample exchange;
// commands flow command exchange -> transport.
type Board struct {
	cfg    Config
	tr     fieldbus.Transport
	logger golog.Logger

	motors   []motorIO
	failed   atomic.Int64 // consecutive failed polls
	samples  *exchange.Exchange[fieldbus.Sample]
	commands *exchange.Exchange[float64]
}

// New creates a board with immutable config.
func New(cfg Config, tr fieldbus.Transport, logger golog.Logger) (*Board, error) {
	if cfg.BoardID == "" {
		return nil, errors.New("board: board id required")
	}
	if cfg.Motors <= 0 {
		return nil, errors.New("board: at least one motor required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("board: interval must be > 0")
	}
	if tr == nil {
		return nil, errors.New("board: transport required")
	}

	motors := make([]motorIO, cfg.Motors)
	for i := range motors {
		motors[i] = motorIO{
			current:  history.NewSeries(cfg.HistoryLength),
			position: history.NewSeries(cfg.HistoryLength),
			velocity: history.NewSeries(cfg.HistoryLength),
			index:    history.NewSeries(cfg.HistoryLength),
			sent:     history.NewSeries(cfg.HistoryLength),
		}
	}

	return &Board{
		cfg:      cfg,
		tr:       tr,
		logger:   logger,
		motors:   motors,
		samples:  exchange.New[fieldbus.Sample](cfg.Motors),
		commands: exchange.New[float64](cfg.Motors),
	}, nil
}

// ID returns the board id.
func (b *Board) ID() string { return b.cfg.BoardID }

// Motors returns the number of motor channels.
func (b *Board) Motors() int { return len(b.motors) }

// PollOnce performs exactly one bus cycle.
// All-or-nothing: any failure aborts the cycle and nothing is recorded.
func (b *Board) PollOnce() PollResult {
	res := PollResult{
		BoardID:   b.cfg.BoardID,
		At:        time.Now(),
		TimeIndex: -1,
	}

	samples, err := b.tr.ReadSamples()
	if err == nil && len(samples) != len(b.motors) {
		err = errors.Errorf("board %s: got %d samples for %d motors", b.cfg.BoardID, len(samples), len(b.motors))
	}
	if err != nil {
		b.failed.Add(1)
		res.Err = err
		return res
	}
	b.failed.Store(0)

	// Commit only if the whole cycle was read.
	for m, s := range samples {
		ch := &b.motors[m]
		res.TimeIndex = ch.position.Append(s.Position)
		ch.current.Append(s.Current)
		ch.velocity.Append(s.Velocity)
		if s.IndexSeen {
			ch.index.Append(s.IndexPosition)
		}
	}
	for m, s := range samples {
		b.samples.Set(m, s)
	}

	res.Samples = samples
	return res
}

// SubmitCurrent hands a current target for one motor to the sender.
func (b *Board) SubmitCurrent(motor int, amps float64) {
	b.commands.Set(motor, amps)
}

// WaitForSample blocks until the next bus cycle publishes motor's sample.
func (b *Board) WaitForSample(ctx context.Context, motor int) (fieldbus.Sample, error) {
	if err := b.samples.WaitForUpdate(ctx, motor); err != nil {
		return fieldbus.Sample{}, err
	}
	return b.samples.Get(motor), nil
}

// SampleCount is the number of cycles published for motor so far.
func (b *Board) SampleCount(motor int) uint64 {
	return b.samples.Count(motor)
}

// WaitForSampleAfter waits for the cycle following the one counted by seen
// and returns its count. A cycle published in between is reported as an
// exchange consistency error; the returned count still moves on so the
// caller can resume.
func (b *Board) WaitForSampleAfter(ctx context.Context, motor int, seen uint64) (uint64, error) {
	return b.samples.WaitForUpdateAfter(ctx, motor, seen)
}

// FailedCycles is the number of consecutive failed polls; 0 after a good one.
func (b *Board) FailedCycles() int64 { return b.failed.Load() }

// Superseded counts commands for motor that a newer one replaced before
// the transport wrote them.
func (b *Board) Superseded(motor int) uint64 { return b.motors[motor].superseded.Load() }

// ---- histories ----

func (b *Board) CurrentHistory(motor int) history.History  { return b.motors[motor].current }
func (b *Board) PositionHistory(motor int) history.History { return b.motors[motor].position }
func (b *Board) VelocityHistory(motor int) history.History { return b.motors[motor].velocity }
func (b *Board) IndexHistory(motor int) history.History    { return b.motors[motor].index }
func (b *Board) SentHistory(motor int) history.History     { return b.motors[motor].sent }
