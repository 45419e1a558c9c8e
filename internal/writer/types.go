// internal/writer/types.go
package writer

import "github.com/tamzrod/blmc-driver/internal/status"

// StatusPlan locates one joint's status block in a status memory.
type StatusPlan struct {
	Endpoint  string
	UnitID    uint16
	BaseSlot  uint16 // block index; address = BaseSlot * status.SlotsPerJoint
	JointName string
}

// StatusWriter is the delivery-only contract for joint status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
