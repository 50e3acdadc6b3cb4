package reports

import (
	"encoding/json"
)

// FormatJSON formats a schedule report as JSON.
func FormatJSON(report *ScheduleReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
