// cmd/blmcd/run.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/control"
	"github.com/tamzrod/blmc-driver/internal/status"
	"github.com/tamzrod/blmc-driver/internal/writer"
)

type RunCommand struct {
	Hold       bool          `long:"hold" description:"Hold every joint at its position at startup"`
	Home       bool          `long:"home" description:"Start homing on every joint with a homing profile"`
	PrintEvery time.Duration `long:"print-every" description:"Print joint status at this interval (0 disables)" default:"0s"`
}

func (c *RunCommand) Execute(args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	d := cfg.Driver

	sys, err := buildSystem(d, logger)
	if err != nil {
		return err
	}

	writers, closeWriters, err := writer.BuildStatusWriters(d)
	if err != nil {
		_ = sys.close()
		return errors.Wrap(err, "status memory")
	}
	defer func() { _ = closeWriters() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys.startBoards(ctx, stop)

	loops := sys.newLoops(time.Duration(d.Control.StaleAfterMs) * time.Millisecond)
	for _, u := range sys.joints {
		l := loops[u.cfg.ID]
		h := u.cfg.Homing
		switch {
		case c.Home && h.ProfileStepSize != 0:
			l.StartHoming(control.HomingParams{
				SearchDistanceLimit: h.SearchDistanceLimit,
				HomeOffset:          h.HomeOffset,
				ProfileStepSize:     h.ProfileStepSize,
			})
		case c.Hold:
			l.HoldCurrentPosition()
		}
	}

	var wg sync.WaitGroup
	for id, l := range loops {
		wg.Add(1)
		go func(id int, l *control.Loop) {
			defer wg.Done()
			if err := l.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorw("control loop stopped", "joint", id, "error", err)
			}
		}(id, l)
	}

	reporter := control.NewReporter(loops, writers,
		time.Duration(d.Control.ReportIntervalMs)*time.Millisecond, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(ctx)
	}()

	logger.Infow("blmcd running", "boards", len(sys.boards), "joints", len(sys.joints), "status_writers", len(writers))

	var tick <-chan time.Time
	if c.PrintEvery > 0 {
		ticker := time.NewTicker(c.PrintEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-tick:
			fmt.Println(sys.snapshotTable(reporter))
		}
	}

	logger.Infow("shutting down")
	wg.Wait()
	err = sys.shutdown()

	fmt.Println(headerStyle.Render("Final joint status"))
	fmt.Println(sys.snapshotTable(reporter))
	return err
}

func (s *system) snapshotTable(r *control.Reporter) string {
	rows := make([][]string, 0, len(s.joints))
	health := make([]uint16, 0, len(s.joints))
	for _, u := range s.joints {
		snap := r.Snapshot(u.cfg.ID)
		health = append(health, snap.Health)
		rows = append(rows, snapshotRow(u.cfg.ID, u.cfg.Name, snap))
	}
	return renderTable(snapshotHeaders, rows, 2, func(row int) bool {
		return health[row] == status.HealthOK
	})
}
