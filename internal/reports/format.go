package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FormatText renders the report as a terminal table for `alarmclock list`.
func FormatText(report *ScheduleReport) string {
	var b strings.Builder

	if a := report.Active; a != nil {
		fmt.Fprintf(&b, "RINGING  #%d  sound %d  for %s", a.ID, a.SoundID, a.RingingFor)
		if a.NFCRequired {
			b.WriteString("  (scan NFC tag to stop)")
		}
		b.WriteString("\n\n")
	}

	if len(report.Alarms) == 0 {
		b.WriteString("No alarms scheduled.\n")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "TIME", "DAY", "SOUND", "NFC", "IN")
		for _, a := range report.Alarms {
			nfc := ""
			if a.NFCRequired {
				nfc = "yes"
			}
			t.Row(
				strconv.Itoa(a.ID),
				a.At.Format("15:04"),
				a.At.Format("Mon Jan 2"),
				strconv.Itoa(a.SoundID),
				nfc,
				a.In,
			)
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "volume %d%%", report.Volume)
	if report.Corrupt > 0 {
		fmt.Fprintf(&b, "  (%d unreadable entries skipped)", report.Corrupt)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatMarkdown renders the report as a Markdown document.
func FormatMarkdown(report *ScheduleReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Alarms\n\n")
	fmt.Fprintf(&b, "_Generated %s_\n\n", report.GeneratedAt.Format(time.RFC1123))

	if a := report.Active; a != nil {
		b.WriteString("## Ringing\n\n")
		fmt.Fprintf(&b, "- Alarm #%d, sound %d, since %s", a.ID, a.SoundID, a.Since.Format("15:04:05"))
		if a.NFCRequired {
			b.WriteString(" (NFC)")
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Scheduled\n\n")
	if len(report.Alarms) == 0 {
		b.WriteString("No alarms scheduled.\n\n")
	} else {
		b.WriteString("| ID | Time | Day | Sound | NFC | In |\n")
		b.WriteString("|---:|------|-----|------:|:---:|----|\n")
		for _, a := range report.Alarms {
			nfc := ""
			if a.NFCRequired {
				nfc = "✓"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %d | %s | %s |\n",
				a.ID, a.At.Format("15:04"), a.At.Format("Mon Jan 2"), a.SoundID, nfc, a.In)
		}
		b.WriteString("\n")
	}

	if len(report.ByDay) > 1 {
		b.WriteString("## By day\n\n")
		for _, d := range report.ByDay {
			fmt.Fprintf(&b, "- %s %s: %d\n", d.DayOfWeek, d.Date, d.Count)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Volume: %d%%\n", report.Volume)
	return b.String()
}
