// internal/fieldbus/can/transport_other.go

//go:build !linux

package can

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/fieldbus"
)

// Transport is unavailable off linux; SocketCAN is a linux facility.
type Transport struct{}

var _ fieldbus.Transport = (*Transport)(nil)

func New(iface string, logger golog.Logger) (*Transport, error) {
	return nil, errors.Errorf("can: SocketCAN interface %s requires linux", iface)
}

func (t *Transport) ReadSamples() ([]fieldbus.Sample, error) { return nil, fieldbus.ErrNoData }
func (t *Transport) WriteCurrent(int, float64) error           { return errors.New("can: unsupported platform") }
func (t *Transport) Close() error                              { return nil }
