package ui

import (
	"fmt"
	"strings"
	"time"

	"alarmclock/internal/lifecycle"
)

// renderBanner shows the ringing alarm. It is empty when nothing rings.
func renderBanner(s *Styles, snap lifecycle.Snapshot, now time.Time, volume, width int) string {
	if !snap.Active {
		return ""
	}

	var b strings.Builder
	b.WriteString(s.BannerTitleStyle.Render(fmt.Sprintf("🔔 ALARM #%d", snap.AlarmID)))
	if !snap.Since.IsZero() {
		b.WriteString("  " + s.AlarmMetaStyle.Render(fmt.Sprintf("ringing for %s", formatUntil(now.Sub(snap.Since)))))
	}
	b.WriteString("\n")
	b.WriteString(s.AlarmMetaStyle.Render(fmt.Sprintf("sound %d · volume %d%%", snap.SoundID, volume)))
	b.WriteString("\n")

	if snap.NFCRequired {
		b.WriteString(s.BannerHintStyle.Render("Scan NFC tag to stop alarm"))
		b.WriteString("\n")
		b.WriteString(s.RenderHelp("n", "tag scanned"))
	} else {
		b.WriteString(s.BannerHintStyle.Render("Time to wake up!"))
		b.WriteString("\n")
		b.WriteString(s.RenderHelp("s", "stop", "z", "snooze"))
	}

	style := s.BannerStyle
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(b.String())
}
