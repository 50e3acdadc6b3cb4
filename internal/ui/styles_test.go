package ui

import (
	"strings"
	"testing"

	"alarmclock/internal/config"

	"github.com/charmbracelet/lipgloss"
)

func TestNewStyles_UsesThemeColors(t *testing.T) {
	theme := &config.ThemeConfig{
		Primary: "#FF0000",
		Accent:  "#00FF00",
		Muted:   "#0000FF",
		Alert:   "#FFFF00",
	}

	styles := NewStylesFromTheme(theme)

	if styles.ColorPrimary != lipgloss.Color("#FF0000") {
		t.Errorf("ColorPrimary = %v, want #FF0000", styles.ColorPrimary)
	}
	if styles.ColorAccent != lipgloss.Color("#00FF00") {
		t.Errorf("ColorAccent = %v, want #00FF00", styles.ColorAccent)
	}
	if styles.ColorMuted != lipgloss.Color("#0000FF") {
		t.Errorf("ColorMuted = %v, want #0000FF", styles.ColorMuted)
	}
	if styles.ColorAlert != lipgloss.Color("#FFFF00") {
		t.Errorf("ColorAlert = %v, want #FFFF00", styles.ColorAlert)
	}
}

func TestNewStyles_UsesDefaults(t *testing.T) {
	styles := NewStylesFromTheme(&config.ThemeConfig{})

	if styles.ColorPrimary != lipgloss.Color("#7C3AED") {
		t.Errorf("ColorPrimary = %v, want default #7C3AED", styles.ColorPrimary)
	}
	if styles.ColorAccent != lipgloss.Color("#10B981") {
		t.Errorf("ColorAccent = %v, want default #10B981", styles.ColorAccent)
	}
	if styles.ColorAlert != lipgloss.Color("#EF4444") {
		t.Errorf("ColorAlert = %v, want default #EF4444", styles.ColorAlert)
	}
}

func TestNewStyles_ComponentStylesInitialized(t *testing.T) {
	styles := NewStylesFromTheme(&config.ThemeConfig{
		Primary: "#FF0000",
		Alert:   "#00FFFF",
	})

	if styles.TitleStyle.GetBackground() != lipgloss.Color("#FF0000") {
		t.Error("TitleStyle should use Primary color for background")
	}
	if styles.PaneFocusedStyle.GetBorderTopForeground() != lipgloss.Color("#FF0000") {
		t.Error("PaneFocusedStyle should use Primary color for border")
	}
	if styles.BannerStyle.GetBorderTopForeground() != lipgloss.Color("#00FFFF") {
		t.Error("BannerStyle should use Alert color for border")
	}
}

func TestNewStyles_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Theme.Primary = "#123456"

	styles := NewStyles(cfg)

	if styles.ColorPrimary != lipgloss.Color("#123456") {
		t.Errorf("ColorPrimary = %v, want #123456", styles.ColorPrimary)
	}
}

func TestRenderHelp(t *testing.T) {
	setupTest(t)
	styles := createTestStyles()

	output := styles.RenderHelp(
		"s", "stop",
		"z", "snooze",
	)

	for _, want := range []string{"s", "stop", "z", "snooze"} {
		if !strings.Contains(output, want) {
			t.Errorf("RenderHelp output %q should contain %q", output, want)
		}
	}
}
