// internal/fieldbus/can/transport_linux.go

//go:build linux

package can

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/fieldbus"
)

// Transport implements fieldbus.Transport for one BLMC board on SocketCAN.
// A receive goroutine decodes frames as they arrive; ReadSamples hands out
// the newest assembled cycle.
type Transport struct {
	tx *canbus.Socket
	rx *canbus.Socket

	logger golog.Logger
	asm    assembler

	mu       sync.Mutex // guards currents and tx
	currents [Motors]float64

	done    chan struct{}
	errMu   sync.Mutex
	recvErr error
}

var _ fieldbus.Transport = (*Transport)(nil)

// New binds send and receive sockets on iface (e.g. "can0").
func New(iface string, logger golog.Logger) (*Transport, error) {
	tx, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "can: open send socket")
	}
	if err := tx.Bind(iface); err != nil {
		_ = tx.Close()
		return nil, errors.Wrapf(err, "can: bind send socket to %s", iface)
	}

	rx, err := canbus.New()
	if err != nil {
		_ = tx.Close()
		return nil, errors.Wrap(err, "can: open receive socket")
	}
	if err := rx.Bind(iface); err != nil {
		_ = tx.Close()
		_ = rx.Close()
		return nil, errors.Wrapf(err, "can: bind receive socket to %s", iface)
	}

	t := &Transport{
		tx:     tx,
		rx:     rx,
		logger: logger,
		done:   make(chan struct{}),
	}
	go t.receive()
	return t, nil
}

func (t *Transport) receive() {
	defer close(t.done)
	for {
		frame, err := t.rx.Recv()
		if err != nil {
			t.errMu.Lock()
			t.recvErr = err
			t.errMu.Unlock()
			return
		}
		if err := t.asm.accept(frame.ID, frame.Data); err != nil {
			t.logger.Warnw("can: dropping malformed frame", "id", frame.ID, "error", err)
		}
	}
}

// ReadSamples returns the newest assembled cycle.
func (t *Transport) ReadSamples() ([]fieldbus.Sample, error) {
	t.errMu.Lock()
	err := t.recvErr
	t.errMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "can: receive loop stopped")
	}
	return t.asm.take()
}

// WriteCurrent updates one motor's target and sends the two-motor command frame.
func (t *Transport) WriteCurrent(motor int, amps float64) error {
	if motor < 0 || motor >= Motors {
		return errors.Errorf("can: motor %d out of range", motor)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.currents
	next[motor] = amps
	data, err := encodeCommand(next)
	if err != nil {
		return err
	}

	if _, err := t.tx.Send(canbus.Frame{ID: IDCommand, Data: data, Kind: canbus.SFF}); err != nil {
		return errors.Wrap(err, "can: send command")
	}
	t.currents = next
	return nil
}

// Close closes both sockets; the receive goroutine exits on the read error.
func (t *Transport) Close() error {
	t.mu.Lock()
	errTx := t.tx.Close()
	t.mu.Unlock()
	errRx := t.rx.Close()
	<-t.done

	if errTx != nil {
		return errTx
	}
	return errRx
}
