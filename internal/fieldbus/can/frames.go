// internal/fieldbus/can/frames.go
package can

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/blmc-driver/internal/fieldbus"
)

// BLMC board frame ids.
const (
	IDCommand      uint32 = 0x005
	IDStatus       uint32 = 0x010
	IDCurrent      uint32 = 0x020
	IDPosition     uint32 = 0x030
	IDVelocity     uint32 = 0x040
	IDADC6         uint32 = 0x050
	IDEncoderIndex uint32 = 0x060
)

// Motors is the number of motors one BLMC board drives.
const Motors = 2

const q24 = 1 << 24

// Position frames are in rotations, velocity frames in krpm.
const (
	radPerRotation = 2 * math.Pi
	radPerSecKRPM  = 1000 * 2 * math.Pi / 60
)

func fromQ24(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / q24
}

func toQ24(v float64) (uint32, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("can: value %f not finite", v)
	}
	q := math.Round(v * q24)
	if q > math.MaxInt32 || q < math.MinInt32 {
		return 0, errors.Errorf("can: value %f out of Q24 range", v)
	}
	return uint32(int32(q)), nil
}

// encodeCommand builds the 8-byte current command payload for both motors.
func encodeCommand(currents [Motors]float64) ([]byte, error) {
	data := make([]byte, 8)
	for m, a := range currents {
		q, err := toQ24(a)
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(data[4*m:], q)
	}
	return data, nil
}

// assembler collects asynchronous board frames into per-cycle samples.
type assembler struct {
	mu      sync.Mutex
	samples [Motors]fieldbus.Sample
	fresh   bool // a position frame arrived since the last take
}

// accept decodes one received frame. Unknown ids are ignored.
func (a *assembler) accept(id uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch id {
	case IDCurrent, IDPosition, IDVelocity:
		if len(data) < 8 {
			return errors.Errorf("can: frame 0x%03x too short: %d bytes", id, len(data))
		}
		for m := 0; m < Motors; m++ {
			v := fromQ24(data[4*m:])
			switch id {
			case IDCurrent:
				a.samples[m].Current = v
			case IDPosition:
				a.samples[m].Position = v * radPerRotation
			case IDVelocity:
				a.samples[m].Velocity = v * radPerSecKRPM
			}
		}
		if id == IDPosition {
			a.fresh = true
		}

	case IDEncoderIndex:
		if len(data) < 5 {
			return errors.Errorf("can: index frame too short: %d bytes", len(data))
		}
		m := int(data[4])
		if m < 0 || m >= Motors {
			return errors.Errorf("can: index frame for motor %d", m)
		}
		a.samples[m].IndexSeen = true
		a.samples[m].IndexPosition = fromQ24(data) * radPerRotation
	}
	return nil
}

// take returns the newest samples and clears index flags.
func (a *assembler) take() ([]fieldbus.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.fresh {
		return nil, fieldbus.ErrNoData
	}
	out := make([]fieldbus.Sample, Motors)
	copy(out, a.samples[:])
	for m := range a.samples {
		a.samples[m].IndexSeen = false
	}
	a.fresh = false
	return out, nil
}
