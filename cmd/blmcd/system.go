// cmd/blmcd/system.go
package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/board"
	"github.com/tamzrod/blmc-driver/internal/config"
	"github.com/tamzrod/blmc-driver/internal/control"
	"github.com/tamzrod/blmc-driver/internal/joint"
	"github.com/tamzrod/blmc-driver/internal/motor"
)

// loadConfig is load + validate + normalize.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	config.Normalize(cfg)
	return cfg, nil
}

type jointUnit struct {
	cfg   config.JointConfig
	motor *motor.Motor
	joint *joint.Joint
}

// system is every board and joint of one config.
type system struct {
	logger  golog.Logger
	boards  []*board.Board
	closers []func() error
	joints  []*jointUnit // sorted by id

	wg      sync.WaitGroup
	errMu   sync.Mutex
	busErrs []error
}

func buildSystem(d config.DriverConfig, logger golog.Logger) (*system, error) {
	s := &system{logger: logger}
	byID := make(map[string]*board.Board, len(d.Boards))

	for _, bc := range d.Boards {
		b, closeFn, err := board.Build(bc, logger)
		if err != nil {
			_ = s.close()
			return nil, errors.Wrapf(err, "board build failed (board=%s)", bc.ID)
		}
		s.boards = append(s.boards, b)
		s.closers = append(s.closers, closeFn)
		byID[bc.ID] = b
	}

	for _, jc := range d.Joints {
		m, err := motor.New(byID[jc.Board], jc.Motor)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		j, err := joint.New(m, joint.Params{
			ID:              jc.ID,
			Name:            jc.Name,
			MotorConstant:   jc.MotorConstant,
			GearRatio:       jc.GearRatio,
			ZeroAngle:       jc.ZeroAngle,
			ReversePolarity: jc.ReversePolarity,
			MaxCurrent:      jc.MaxCurrent,
		}, logger)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		j.SetPositionControlGains(jc.Gains.Kp, jc.Gains.Kd)
		s.joints = append(s.joints, &jointUnit{cfg: jc, motor: m, joint: j})
	}

	sort.Slice(s.joints, func(a, b int) bool { return s.joints[a].cfg.ID < s.joints[b].cfg.ID })
	return s, nil
}

// selectJoints returns the joints named by ids, or all of them.
func (s *system) selectJoints(ids []int) ([]*jointUnit, error) {
	if len(ids) == 0 {
		return s.joints, nil
	}
	var out []*jointUnit
	for _, id := range ids {
		var found *jointUnit
		for _, u := range s.joints {
			if u.cfg.ID == id {
				found = u
			}
		}
		if found == nil {
			return nil, errors.Errorf("unknown joint %d", id)
		}
		out = append(out, found)
	}
	return out, nil
}

// startBoards runs every board's bus loop until ctx is done.
// A board that stops on its own cancels the whole system through stop.
func (s *system) startBoards(ctx context.Context, stop context.CancelFunc) {
	for _, b := range s.boards {
		s.wg.Add(1)
		go func(b *board.Board) {
			defer s.wg.Done()
			err := b.Run(ctx, nil)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Errorw("board stopped", "board", b.ID(), "error", err)
			s.errMu.Lock()
			s.busErrs = append(s.busErrs, err)
			s.errMu.Unlock()
			stop()
		}(b)
	}
}

// waitForData blocks until every joint has at least one measurement.
func (s *system) waitForData(ctx context.Context, units []*jointUnit) error {
	for _, u := range units {
		if err := u.motor.WaitForMeasurement(ctx); err != nil {
			return errors.Wrapf(err, "joint %d: no measurements", u.cfg.ID)
		}
	}
	return nil
}

// newLoops creates one control loop per joint, keyed by joint id.
func (s *system) newLoops(staleAfter time.Duration) map[int]*control.Loop {
	loops := make(map[int]*control.Loop, len(s.joints))
	for _, u := range s.joints {
		l := control.NewLoop(u.joint, u.motor, s.logger)
		l.SetStaleAfter(staleAfter)
		loops[u.cfg.ID] = l
	}
	return loops
}

// shutdown waits for the boards to zero their motors and closes transports.
func (s *system) shutdown() error {
	s.wg.Wait()
	closeErr := s.close()

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.busErrs) > 0 {
		return s.busErrs[0]
	}
	return closeErr
}

func (s *system) close() error {
	var last error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			last = err
		}
	}
	s.closers = nil
	return last
}
