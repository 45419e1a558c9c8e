// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/pkg/errors"

	cfg "github.com/tamzrod/blmc-driver/internal/config"
	wmodbus "github.com/tamzrod/blmc-driver/internal/writer/modbus"
)

// BuildStatusPlans converts the joints that publish status into plans,
// keyed by joint id. Assumes config has already passed validation.
func BuildStatusPlans(d cfg.DriverConfig) map[int]StatusPlan {
	plans := make(map[int]StatusPlan)
	for _, j := range d.Joints {
		if j.StatusSlot == nil {
			continue
		}
		plans[j.ID] = StatusPlan{
			Endpoint:  d.StatusMemory.Endpoint,
			UnitID:    uint16(d.StatusMemory.UnitID),
			BaseSlot:  *j.StatusSlot,
			JointName: j.Name,
		}
	}
	return plans
}

// BuildStatusWriters connects to the status memory and creates one writer
// per planned joint. With no plans it connects to nothing.
func BuildStatusWriters(d cfg.DriverConfig) (map[int]StatusWriter, func() error, error) {
	plans := BuildStatusPlans(d)
	writers := make(map[int]StatusWriter, len(plans))
	if len(plans) == 0 {
		return writers, func() error { return nil }, nil
	}

	cli, err := wmodbus.Dial(wmodbus.Config{
		Endpoint: d.StatusMemory.Endpoint,
		Timeout:  time.Duration(d.StatusMemory.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	for id, p := range plans {
		sw, err := NewJointStatusWriter(p, cli)
		if err != nil {
			_ = cli.Close()
			return nil, nil, errors.Wrapf(err, "joint %d", id)
		}
		writers[id] = sw
	}

	return writers, cli.Close, nil
}
