// cmd/blmcd/calibrate.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tamzrod/blmc-driver/internal/joint"
)

type CalibrateCommand struct {
	Joints []int `short:"j" long:"joint" description:"Joint id to calibrate (repeatable, default all)"`
}

type calibrationOutcome struct {
	u   *jointUnit
	res joint.CalibrationResult
	err error
}

// Execute calibrates the selected joints one after another.
func (c *CalibrateCommand) Execute(args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	sys, err := buildSystem(cfg.Driver, logger)
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

	var outcomes []calibrationOutcome
	if err := sys.waitForData(ctx, units); err != nil {
		stop()
		_ = sys.shutdown()
		return err
	}

	var firstErr error
	for _, u := range units {
		cc := u.cfg.Calibration
		logger.Infow("calibrating", "joint", u.cfg.ID, "mechanical", cc.Mechanical)

		res, err := u.joint.Calibrate(ctx, cc.Mechanical, cc.AngleZeroToIndex)
		outcomes = append(outcomes, calibrationOutcome{u: u, res: res, err: err})
		if err != nil {
			logger.Errorw("calibration aborted", "joint", u.cfg.ID, "error", err)
			firstErr = err
			break
		}
		logger.Infow("calibration done", "joint", u.cfg.ID,
			"angle_zero_to_index", res.AngleZeroToIndex, "final_angle", res.FinalAngle)
	}

	stop()
	shutdownErr := sys.shutdown()

	fmt.Println(renderCalibrationTable(outcomes))
	if firstErr != nil {
		return firstErr
	}
	return shutdownErr
}

func renderCalibrationTable(outcomes []calibrationOutcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		row := []string{
			fmt.Sprintf("%d", o.u.cfg.ID),
			o.u.cfg.Name,
			"ok",
			fmt.Sprintf("%.4f", o.res.AngleZeroToIndex),
			fmt.Sprintf("%.4f", o.res.IndexAngle),
			fmt.Sprintf("%.4f", o.res.FinalAngle),
		}
		if o.err != nil {
			row[2] = o.err.Error()
		}
		rows = append(rows, row)
	}
	return renderTable([]string{"Joint", "Name", "Result", "Zero to index (rad)", "Index (rad)", "Final (rad)"}, rows, 2,
		func(row int) bool { return outcomes[row].err == nil && outcomes[row].res.OK })
}
