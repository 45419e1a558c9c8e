// internal/config/config.go
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Driver DriverConfig `yaml:"driver"`
}

type DriverConfig struct {
	Boards       []BoardConfig      `yaml:"boards"`
	Joints       []JointConfig      `yaml:"joints"`
	Control      ControlConfig      `yaml:"control"`
	StatusMemory StatusMemoryConfig `yaml:"status_memory"`
}

// ---- BOARD ----

// Transport names accepted in BoardConfig.Transport.
const (
	TransportModbusTCP = "modbus-tcp"
	TransportModbusRTU = "modbus-rtu"
	TransportCAN       = "can"
)

type BoardConfig struct {
	ID        string `yaml:"id"`
	Transport string `yaml:"transport"`

	// modbus-tcp: host:port, modbus-rtu: serial device, can: interface name
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
	BaudRate  int    `yaml:"baud_rate"`

	Motors        int        `yaml:"motors"`
	HistoryLength int        `yaml:"history_length"`
	Poll          PollConfig `yaml:"poll"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`

	// Consecutive failed polls after which the board zeroes its motors and stops.
	MaxFailedCycles int `yaml:"max_failed_cycles"`
}

// ---- JOINT ----

type JointConfig struct {
	ID    int    `yaml:"id"`
	Name  string `yaml:"name"`
	Board string `yaml:"board"`
	Motor int    `yaml:"motor"`

	MotorConstant   float64 `yaml:"motor_constant"` // Nm/A
	GearRatio       float64 `yaml:"gear_ratio"`
	ZeroAngle       float64 `yaml:"zero_angle"` // rad
	ReversePolarity bool    `yaml:"reverse_polarity"`
	MaxCurrent      float64 `yaml:"max_current"` // A

	Gains       GainsConfig       `yaml:"gains"`
	Homing      HomingConfig      `yaml:"homing"`
	Calibration CalibrationConfig `yaml:"calibration"`

	// Joint status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
}

type GainsConfig struct {
	Kp float64 `yaml:"kp"`
	Kd float64 `yaml:"kd"`
}

type HomingConfig struct {
	SearchDistanceLimit float64 `yaml:"search_distance_limit"` // rad
	HomeOffset          float64 `yaml:"home_offset"`           // rad
	ProfileStepSize     float64 `yaml:"profile_step_size"`     // rad per tick
}

type CalibrationConfig struct {
	Mechanical       bool    `yaml:"mechanical"`
	AngleZeroToIndex float64 `yaml:"angle_zero_to_index"` // rad, used when not mechanical
}

// ---- CONTROL ----

type ControlConfig struct {
	// Spinner period for self-clocked routines (homing run to completion).
	PeriodMs int `yaml:"period_ms"`

	// How often joint snapshots are pushed to the status memory.
	ReportIntervalMs int `yaml:"report_interval_ms"`

	// A control loop without a measurement for this long disarms its joint.
	StaleAfterMs int `yaml:"stale_after_ms"`
}

// ---- STATUS MEMORY ----

type StatusMemoryConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Load reads and parses a YAML config file.
// It does not validate; call Validate then Normalize.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(data)
}

// Parse decodes YAML config bytes. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config: parse")
	}
	return &cfg, nil
}
