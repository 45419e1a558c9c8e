// internal/board/builder.go
package board

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	cfg "github.com/tamzrod/blmc-driver/internal/config"
	"github.com/tamzrod/blmc-driver/internal/fieldbus"
	"github.com/tamzrod/blmc-driver/internal/fieldbus/can"
	fbmodbus "github.com/tamzrod/blmc-driver/internal/fieldbus/modbus"
)

// Build opens the transport named by one board config and wraps it in a Board.
// Assumes config has already been validated and normalized.
// The returned close func releases the transport.
func Build(bc cfg.BoardConfig, logger golog.Logger) (*Board, func() error, error) {
	tr, err := openTransport(bc, logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "board %s", bc.ID)
	}

	b, err := New(Config{
		BoardID:         bc.ID,
		Motors:          bc.Motors,
		Interval:        time.Duration(bc.Poll.IntervalMs) * time.Millisecond,
		HistoryLength:   bc.HistoryLength,
		MaxFailedCycles: bc.Poll.MaxFailedCycles,
	}, tr, logger)
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}

	return b, tr.Close, nil
}

func openTransport(bc cfg.BoardConfig, logger golog.Logger) (fieldbus.Transport, error) {
	switch bc.Transport {
	case cfg.TransportModbusTCP, cfg.TransportModbusRTU:
		mc := fbmodbus.Config{
			Endpoint: bc.Endpoint,
			UnitID:   bc.UnitID,
			Timeout:  time.Duration(bc.TimeoutMs) * time.Millisecond,
			Motors:   bc.Motors,
		}
		if bc.Transport == cfg.TransportModbusRTU {
			mc.BaudRate = bc.BaudRate
		}
		return fbmodbus.New(mc)

	case cfg.TransportCAN:
		return can.New(bc.Endpoint, logger)

	default:
		return nil, errors.Errorf("unsupported transport %q", bc.Transport)
	}
}
