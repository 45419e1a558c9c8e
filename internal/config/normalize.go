// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultPollIntervalMs = 1
	DefaultTimeoutMs      = 100
	DefaultHistoryLength  = 1000
	DefaultBaudRate       = 115200
	DefaultControlPeriod  = 1
	DefaultReportInterval = 100
	DefaultMaxFailed      = 100
	DefaultStaleAfterMs   = 100
	JointNameMaxChars     = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	d := &cfg.Driver

	for bi := range d.Boards {
		b := &d.Boards[bi]

		if b.Poll.IntervalMs == 0 {
			b.Poll.IntervalMs = DefaultPollIntervalMs
		}
		if b.Poll.MaxFailedCycles == 0 {
			b.Poll.MaxFailedCycles = DefaultMaxFailed
		}
		if b.TimeoutMs == 0 {
			b.TimeoutMs = DefaultTimeoutMs
		}
		if b.HistoryLength == 0 {
			b.HistoryLength = DefaultHistoryLength
		}
		if b.Transport == TransportModbusRTU && b.BaudRate == 0 {
			b.BaudRate = DefaultBaudRate
		}
	}

	for ji := range d.Joints {
		j := &d.Joints[ji]

		// Truncate to what the status block can carry.
		if len(j.Name) > JointNameMaxChars {
			j.Name = j.Name[:JointNameMaxChars]
		}
	}

	if d.Control.PeriodMs == 0 {
		d.Control.PeriodMs = DefaultControlPeriod
	}
	if d.Control.ReportIntervalMs == 0 {
		d.Control.ReportIntervalMs = DefaultReportInterval
	}
	if d.Control.StaleAfterMs == 0 {
		d.Control.StaleAfterMs = DefaultStaleAfterMs
	}
	if d.StatusMemory.TimeoutMs == 0 {
		d.StatusMemory.TimeoutMs = DefaultTimeoutMs
	}
}
