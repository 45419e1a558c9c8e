// cmd/blmcd/table.go
package main

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tamzrod/blmc-driver/internal/joint"
	"github.com/tamzrod/blmc-driver/internal/status"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableGoodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

// renderTable draws rows under headers. Column stateCol is colored by good;
// pass -1 for no state column.
func renderTable(headers []string, rows [][]string, stateCol int, good func(row int) bool) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch {
			case col == 0:
				return tableJointStyle
			case col == stateCol && row >= 0 && row < len(rows):
				if good(row) {
					return tableGoodStyle
				}
				return tableBadStyle
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}

var snapshotHeaders = []string{"Joint", "Name", "Health", "Error", "Seconds", "Homing", "Angle (rad)", "Velocity (rad/s)", "Torque (Nm)"}

func snapshotRow(id int, name string, s status.Snapshot) []string {
	return []string{
		fmt.Sprintf("%d", id),
		name,
		healthName(s.Health),
		errorName(s.LastErrorCode),
		fmt.Sprintf("%d", s.SecondsInError),
		homingName(s.Homing),
		formatValue(s.Angle, "%.4f"),
		formatValue(s.Velocity, "%.3f"),
		formatValue(s.Torque, "%.3f"),
	}
}

func formatValue(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func healthName(h uint16) string {
	switch h {
	case status.HealthUnknown:
		return "unknown"
	case status.HealthOK:
		return "ok"
	case status.HealthError:
		return "error"
	case status.HealthStale:
		return "stale"
	case status.HealthDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("%d", h)
	}
}

func errorName(code uint16) string {
	switch code {
	case status.ErrorNone:
		return "-"
	case status.ErrorGeneric:
		return "generic"
	case status.ErrorSafetyViolation:
		return "safety"
	case status.ErrorConsistency:
		return "consistency"
	case status.ErrorHomingFailed:
		return "homing failed"
	case status.ErrorHomingNotInitialized:
		return "homing not initialized"
	case status.ErrorNoData:
		return "no data"
	default:
		return fmt.Sprintf("%d", code)
	}
}

func homingName(h uint16) string {
	return joint.HomingStatus(h).String()
}
