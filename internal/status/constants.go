// internal/status/constants.go
package status

// Joint Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerJoint is the fixed number of holding registers per joint.
const SlotsPerJoint = 20

// ---- SLOT INDICES ----

const (
	SlotHealthCode     = 0
	SlotLastErrorCode  = 1
	SlotSecondsInError = 2
	SlotHomingStatus   = 3

	// int32 values, high word first
	SlotAngle    = 4 // µrad
	SlotVelocity = 6 // µrad/s
	SlotTorque   = 8 // mNm

	// Slot 10 is reserved.
	SlotReserved = 10
)

// ---- JOINT NAME ----

// Joint name is always placed at the END of the status block.
const (
	SlotJointNameStart = 11
	SlotJointNameSlots = 8
	SlotJointNameEnd   = SlotJointNameStart + SlotJointNameSlots - 1
)

// JointNameMaxChars is the maximum number of ASCII characters stored for a joint name.
const JointNameMaxChars = 16

// ---- SCALING ----

const (
	AngleScale    = 1e6 // rad -> µrad
	VelocityScale = 1e6 // rad/s -> µrad/s
	TorqueScale   = 1e3 // Nm -> mNm
)

// NoData is the int32 written for a measurement that is not available.
const NoData int32 = -1 << 31

// ---- HEALTH CODES ----

const (
	HealthUnknown  uint16 = 0
	HealthOK       uint16 = 1
	HealthError    uint16 = 2
	HealthStale    uint16 = 3
	HealthDisabled uint16 = 4
)

// ---- ERROR CODES ----

const (
	ErrorNone                 uint16 = 0
	ErrorGeneric              uint16 = 1
	ErrorSafetyViolation      uint16 = 2
	ErrorConsistency          uint16 = 3
	ErrorHomingFailed         uint16 = 4
	ErrorHomingNotInitialized uint16 = 5
	ErrorNoData               uint16 = 6
)

// MaxSecondsInError is where the seconds counter saturates.
const MaxSecondsInError = 65535
