// cmd/blmcd/status.go
package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/status"
	"github.com/tamzrod/blmc-driver/internal/writer"
	wmodbus "github.com/tamzrod/blmc-driver/internal/writer/modbus"
)

type StatusCommand struct{}

// Execute reads every published joint status block back from the status memory.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	d := cfg.Driver

	plans := writer.BuildStatusPlans(d)
	if len(plans) == 0 {
		fmt.Println(dimStyle.Render("no joint publishes a status block"))
		return nil
	}

	cli, err := wmodbus.Dial(wmodbus.Config{
		Endpoint: d.StatusMemory.Endpoint,
		Timeout:  time.Duration(d.StatusMemory.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer cli.Close()

	ids := make([]int, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([][]string, 0, len(ids))
	health := make([]uint16, 0, len(ids))
	for _, id := range ids {
		p := plans[id]
		regs, err := cli.ReadRegisters(uint8(p.UnitID), p.BaseSlot*status.SlotsPerJoint, status.SlotsPerJoint)
		if err != nil {
			return errors.Wrapf(err, "joint %d: read status block", id)
		}
		snap, name, err := status.Decode(regs)
		if err != nil {
			return errors.Wrapf(err, "joint %d", id)
		}
		health = append(health, snap.Health)
		rows = append(rows, snapshotRow(id, name, snap))
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Status memory %s (unit %d)", d.StatusMemory.Endpoint, d.StatusMemory.UnitID)))
	fmt.Println(renderTable(snapshotHeaders, rows, 2, func(row int) bool {
		return health[row] == status.HealthOK
	}))
	return nil
}
