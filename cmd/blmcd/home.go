// cmd/blmcd/home.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tamzrod/blmc-driver/internal/joint"
	"github.com/tamzrod/blmc-driver/internal/spinner"
)

type HomeCommand struct {
	Joints  []int `short:"j" long:"joint" description:"Joint id to home (repeatable, default all)"`
	AtStart bool  `long:"at-current-position" description:"Declare the current position home without moving"`
}

type homeResult struct {
	u        *jointUnit
	status   joint.HomingStatus
	distance float64
	err      error
}

func (c *HomeCommand) Execute(args []string) error {
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
	units, err := sys.selectJoints(c.Joints)
	if err != nil {
		_ = sys.close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys.startBoards(ctx, stop)

	results := make([]homeResult, len(units))
	if err := sys.waitForData(ctx, units); err != nil {
		stop()
		_ = sys.shutdown()
		return err
	}

	period := time.Duration(d.Control.PeriodMs) * time.Millisecond
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u *jointUnit) {
			defer wg.Done()
			results[i] = c.home(ctx, u, period)
			if results[i].err != nil {
				logger.Errorw("homing aborted", "joint", u.cfg.ID, "error", results[i].err)
				return
			}
			logger.Infow("homing done", "joint", u.cfg.ID, "status", results[i].status,
				"zero_angle", u.joint.ZeroAngle(), "distance", results[i].distance)
		}(i, u)
	}
	wg.Wait()

	stop()
	shutdownErr := sys.shutdown()

	fmt.Println(renderHomeTable(results))
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return shutdownErr
}

func (c *HomeCommand) home(ctx context.Context, u *jointUnit, period time.Duration) homeResult {
	j := u.joint
	h := u.cfg.Homing
	res := homeResult{u: u}

	if c.AtStart {
		j.HomingAtCurrentPosition(h.HomeOffset)
		res.status = j.Homing()
		res.distance, res.err = j.DistanceTravelledDuringHoming()
		return res
	}

	if err := j.InitHoming(u.cfg.ID, h.SearchDistanceLimit, h.HomeOffset, h.ProfileStepSize); err != nil {
		res.err = err
		return res
	}
	sp, err := spinner.New(period)
	if err != nil {
		res.err = err
		return res
	}

	res.status, res.err = joint.Run(ctx, j.HomingStepper(), sp)

	// Homing leaves the last PD torque applied; release the joint.
	if err := j.SetTorque(0); err == nil {
		_ = j.SendTorque()
	}
	if res.err != nil || res.status != joint.HomingSucceeded {
		return res
	}
	res.distance, res.err = j.DistanceTravelledDuringHoming()
	return res
}

func renderHomeTable(results []homeResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{
			fmt.Sprintf("%d", r.u.cfg.ID),
			r.u.cfg.Name,
			r.status.String(),
			fmt.Sprintf("%.4f", r.u.joint.ZeroAngle()),
			fmt.Sprintf("%.4f", r.distance),
			"-",
		}
		if r.err != nil {
			row[5] = r.err.Error()
		}
		rows = append(rows, row)
	}
	return renderTable([]string{"Joint", "Name", "Homing", "Zero angle (rad)", "Distance (rad)", "Error"}, rows, 2,
		func(row int) bool {
			return results[row].err == nil && results[row].status == joint.HomingSucceeded
		})
}
