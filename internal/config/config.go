// Package config handles configuration loading and defaults for alarmclock.
// Configuration is loaded from XDG-compliant paths (typically ~/.config/alarmclock/config.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alarmclock/internal/fsutil"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/logging"
	"alarmclock/internal/notify"
	"alarmclock/internal/prefs"
	"alarmclock/internal/resource"
	"alarmclock/internal/sound"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// DataDir overrides the default data directory (~/.alarmclock)
	DataDir string `yaml:"data_dir,omitempty"`

	// Store selects the durable key-value backend: "file" or "sqlite"
	Store string `yaml:"store,omitempty"`

	// Alarm configures the alarm lifecycle timings
	Alarm AlarmConfig `yaml:"alarm,omitempty"`

	// Resources configures wake lock, vibration and other resource ceilings
	Resources ResourceConfig `yaml:"resources,omitempty"`

	// Notifications configures desktop notifications
	Notifications NotificationConfig `yaml:"notifications,omitempty"`

	// Sound configures alarm tone playback
	Sound SoundConfig `yaml:"sound,omitempty"`

	// Log configures logging output
	Log LogConfig `yaml:"log,omitempty"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Theme customizes the visual appearance of the console
	Theme ThemeConfig `yaml:"theme,omitempty"`

	// Keys customizes console keyboard shortcuts
	Keys KeysConfig `yaml:"keys,omitempty"`

	// UX controls console behavior
	UX UXConfig `yaml:"ux,omitempty"`

	// Backup controls store snapshots
	Backup BackupConfig `yaml:"backup,omitempty"`
}

// AlarmConfig defines lifecycle timings.
type AlarmConfig struct {
	// DedupWindow ignores repeated triggers for the ringing alarm
	DedupWindow time.Duration `yaml:"dedup_window,omitempty"` // default: 3s

	// SafetyTimeout stops an alarm nobody stopped
	SafetyTimeout time.Duration `yaml:"safety_timeout,omitempty"` // default: 15m

	// SnoozeDelay is how far a snooze pushes the alarm
	SnoozeDelay time.Duration `yaml:"snooze_delay,omitempty"` // default: 5m

	// RecoveryStaleness bounds how old an active alarm may be to re-ring at startup
	RecoveryStaleness time.Duration `yaml:"recovery_staleness,omitempty"` // default: 30m

	// SecondStopDelay is when the sound stop is repeated
	SecondStopDelay time.Duration `yaml:"second_stop_delay,omitempty"` // default: 300ms

	// DefaultVolume is used when no volume was set (0-100)
	DefaultVolume int `yaml:"default_volume,omitempty"` // default: 70
}

// ResourceConfig defines resource ceilings and retries.
type ResourceConfig struct {
	WakeLockCeiling   time.Duration `yaml:"wake_lock_ceiling,omitempty"`   // default: 10m
	ForegroundCeiling time.Duration `yaml:"foreground_ceiling,omitempty"`  // default: 25m
	AudioFocusCeiling time.Duration `yaml:"audio_focus_ceiling,omitempty"` // default: 30m
	VibrationCeiling  time.Duration `yaml:"vibration_ceiling,omitempty"`   // default: 15m
	VibrationInterval time.Duration `yaml:"vibration_interval,omitempty"`  // default: 5s

	// VibrationPatternMS alternates off/on durations in milliseconds
	VibrationPatternMS []int `yaml:"vibration_pattern_ms,omitempty"`

	RetryDelay    time.Duration `yaml:"retry_delay,omitempty"`    // default: 1s
	RetryAttempts int           `yaml:"retry_attempts,omitempty"` // default: 3

	// RearmVibrationOnRefresh re-issues vibration when the ringing alarm is triggered again
	RearmVibrationOnRefresh bool `yaml:"rearm_vibration_on_refresh"` // default: false
}

// NotificationConfig defines desktop notification settings.
type NotificationConfig struct {
	// Enabled enables/disables notifications
	Enabled bool `yaml:"enabled"`

	// Sound enables notification sounds
	Sound bool `yaml:"sound"`
}

// SoundConfig defines alarm tone settings.
type SoundConfig struct {
	Enabled        bool          `yaml:"enabled"`
	AssetDir       string        `yaml:"asset_dir,omitempty"`       // default: <data_dir>/sounds
	RestartDelay   time.Duration `yaml:"restart_delay,omitempty"`   // default: 1s
	HealthInterval time.Duration `yaml:"health_interval,omitempty"` // default: 5s
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // default: info
	Format string `yaml:"format,omitempty"` // default: console
	File   string `yaml:"file,omitempty"`   // default: stderr
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics (empty disables the endpoint)
	Listen string `yaml:"listen,omitempty"`
}

// UXConfig defines console behavior.
type UXConfig struct {
	// ConfirmCancel asks before cancelling an alarm
	ConfirmCancel bool `yaml:"confirm_cancel"` // default: true
}

// BackupConfig defines snapshot retention.
type BackupConfig struct {
	// Keep is how many backups `alarmclock backup` leaves after pruning
	Keep int `yaml:"keep,omitempty"` // default: 10
}

// ThemeConfig defines color and style settings.
type ThemeConfig struct {
	// Primary color for focused elements (hex, e.g., "#FF5733")
	Primary string `yaml:"primary,omitempty"`

	// Accent color for highlights (hex)
	Accent string `yaml:"accent,omitempty"`

	// Muted color for secondary text (hex)
	Muted string `yaml:"muted,omitempty"`

	// Alert color for the ringing banner (hex)
	Alert string `yaml:"alert,omitempty"`
}

// KeysConfig defines customizable keyboard shortcuts.
// Each field accepts a comma-separated list of key bindings.
// Examples: "q,ctrl+c", "s", "j,down"
type KeysConfig struct {
	Quit string `yaml:"quit,omitempty"` // default: "q,ctrl+c"
	Help string `yaml:"help,omitempty"` // default: "?"

	Up   string `yaml:"up,omitempty"`   // default: "k,up"
	Down string `yaml:"down,omitempty"` // default: "j,down"

	Stop    string `yaml:"stop,omitempty"`     // default: "s"
	Snooze  string `yaml:"snooze,omitempty"`   // default: "z"
	ScanTag string `yaml:"scan_tag,omitempty"` // default: "n"

	AddAlarm    string `yaml:"add_alarm,omitempty"`    // default: "a"
	CancelAlarm string `yaml:"cancel_alarm,omitempty"` // default: "x"

	VolumeUp   string `yaml:"volume_up,omitempty"`   // default: "+,="
	VolumeDown string `yaml:"volume_down,omitempty"` // default: "-"

	Confirm string `yaml:"confirm,omitempty"` // default: "enter"
	Cancel  string `yaml:"cancel,omitempty"`  // default: "esc"
}

// Default returns the default configuration.
func Default() *Config {
	res := resource.DefaultConfig()
	pattern := make([]int, 0, len(res.VibrationPattern))
	for _, d := range res.VibrationPattern {
		pattern = append(pattern, int(d/time.Millisecond))
	}

	return &Config{
		DataDir: defaultDataDir(),
		Store:   prefs.BackendFile,
		Alarm: AlarmConfig{
			DedupWindow:       3 * time.Second,
			SafetyTimeout:     15 * time.Minute,
			SnoozeDelay:       5 * time.Minute,
			RecoveryStaleness: 30 * time.Minute,
			SecondStopDelay:   300 * time.Millisecond,
			DefaultVolume:     70,
		},
		Resources: ResourceConfig{
			WakeLockCeiling:         res.WakeLockCeiling,
			ForegroundCeiling:       res.ForegroundCeiling,
			AudioFocusCeiling:       res.AudioFocusCeiling,
			VibrationCeiling:        res.VibrationCeiling,
			VibrationInterval:       res.VibrationInterval,
			VibrationPatternMS:      pattern,
			RetryDelay:              res.RetryDelay,
			RetryAttempts:           res.MaxAttempts,
			RearmVibrationOnRefresh: false,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Sound:   false, // the alarm tone is played separately
		},
		Sound: SoundConfig{
			Enabled:        true,
			AssetDir:       "",
			RestartDelay:   time.Second,
			HealthInterval: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Theme: ThemeConfig{
			Primary: "#7C3AED", // Violet
			Accent:  "#10B981", // Emerald
			Muted:   "#6B7280", // Gray
			Alert:   "#EF4444", // Red
		},
		Keys: KeysConfig{
			// Defaults are empty strings, which means use built-in defaults
		},
		UX: UXConfig{
			ConfirmCancel: true,
		},
		Backup: BackupConfig{
			Keep: 10,
		},
	}
}

// defaultDataDir returns the default data directory path.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alarmclock"
	}
	return filepath.Join(home, ".alarmclock")
}

// configDir returns the configuration directory path (XDG compliant).
func configDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "alarmclock")
	}

	// Fall back to ~/.config/alarmclock
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "alarmclock")
}

// Path returns the path to the config file.
func Path() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads configuration from disk, merging with defaults.
// If no config file exists, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	path := Path()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, err
	}

	// Parse YAML and merge with defaults
	var userCfg Config
	if err := yaml.Unmarshal(data, &userCfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var doc yaml.Node
	_ = yaml.Unmarshal(data, &doc) // best-effort; fall back to conservative merge if this fails

	// Merge user config with defaults (presence-aware for booleans/slices)
	cfg.mergeFromYAML(&userCfg, &doc)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// mergeNonEmpty applies non-empty values from other to c.
// It intentionally does not touch booleans or slices (those require presence-aware merging).
func (c *Config) mergeNonEmpty(other *Config) {
	setString(&c.DataDir, other.DataDir)
	setString(&c.Store, other.Store)

	setDuration(&c.Alarm.DedupWindow, other.Alarm.DedupWindow)
	setDuration(&c.Alarm.SafetyTimeout, other.Alarm.SafetyTimeout)
	setDuration(&c.Alarm.SnoozeDelay, other.Alarm.SnoozeDelay)
	setDuration(&c.Alarm.RecoveryStaleness, other.Alarm.RecoveryStaleness)
	setDuration(&c.Alarm.SecondStopDelay, other.Alarm.SecondStopDelay)
	setInt(&c.Alarm.DefaultVolume, other.Alarm.DefaultVolume)

	setDuration(&c.Resources.WakeLockCeiling, other.Resources.WakeLockCeiling)
	setDuration(&c.Resources.ForegroundCeiling, other.Resources.ForegroundCeiling)
	setDuration(&c.Resources.AudioFocusCeiling, other.Resources.AudioFocusCeiling)
	setDuration(&c.Resources.VibrationCeiling, other.Resources.VibrationCeiling)
	setDuration(&c.Resources.VibrationInterval, other.Resources.VibrationInterval)
	setDuration(&c.Resources.RetryDelay, other.Resources.RetryDelay)
	setInt(&c.Resources.RetryAttempts, other.Resources.RetryAttempts)

	setString(&c.Sound.AssetDir, other.Sound.AssetDir)
	setDuration(&c.Sound.RestartDelay, other.Sound.RestartDelay)
	setDuration(&c.Sound.HealthInterval, other.Sound.HealthInterval)

	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.Format, other.Log.Format)
	setString(&c.Log.File, other.Log.File)

	setString(&c.Metrics.Listen, other.Metrics.Listen)

	// Theme merging
	setString(&c.Theme.Primary, other.Theme.Primary)
	setString(&c.Theme.Accent, other.Theme.Accent)
	setString(&c.Theme.Muted, other.Theme.Muted)
	setString(&c.Theme.Alert, other.Theme.Alert)

	// Keys merging
	setString(&c.Keys.Quit, other.Keys.Quit)
	setString(&c.Keys.Help, other.Keys.Help)
	setString(&c.Keys.Up, other.Keys.Up)
	setString(&c.Keys.Down, other.Keys.Down)
	setString(&c.Keys.Stop, other.Keys.Stop)
	setString(&c.Keys.Snooze, other.Keys.Snooze)
	setString(&c.Keys.ScanTag, other.Keys.ScanTag)
	setString(&c.Keys.AddAlarm, other.Keys.AddAlarm)
	setString(&c.Keys.CancelAlarm, other.Keys.CancelAlarm)
	setString(&c.Keys.VolumeUp, other.Keys.VolumeUp)
	setString(&c.Keys.VolumeDown, other.Keys.VolumeDown)
	setString(&c.Keys.Confirm, other.Keys.Confirm)
	setString(&c.Keys.Cancel, other.Keys.Cancel)

	setInt(&c.Backup.Keep, other.Backup.Keep)
}

func (c *Config) mergeFromYAML(other *Config, doc *yaml.Node) {
	// Fall back to conservative behavior if we can't inspect presence.
	if doc == nil || len(doc.Content) == 0 {
		// Avoid clobbering defaults with zero-values: only apply non-empty strings and non-zero ints.
		c.mergeNonEmpty(other)
		if len(other.Resources.VibrationPatternMS) > 0 {
			c.Resources.VibrationPatternMS = other.Resources.VibrationPatternMS
		}
		return
	}

	// First apply all non-empty string-ish merges.
	c.mergeNonEmpty(other)

	// Now re-apply booleans and slices only when present in YAML.
	if yamlHasPath(doc, "alarm", "default_volume") {
		c.Alarm.DefaultVolume = other.Alarm.DefaultVolume
	}
	if yamlHasPath(doc, "resources", "vibration_pattern_ms") {
		c.Resources.VibrationPatternMS = other.Resources.VibrationPatternMS
	}
	if yamlHasPath(doc, "resources", "rearm_vibration_on_refresh") {
		c.Resources.RearmVibrationOnRefresh = other.Resources.RearmVibrationOnRefresh
	}
	if yamlHasPath(doc, "notifications", "enabled") {
		c.Notifications.Enabled = other.Notifications.Enabled
	}
	if yamlHasPath(doc, "notifications", "sound") {
		c.Notifications.Sound = other.Notifications.Sound
	}
	if yamlHasPath(doc, "sound", "enabled") {
		c.Sound.Enabled = other.Sound.Enabled
	}
	if yamlHasPath(doc, "ux", "confirm_cancel") {
		c.UX.ConfirmCancel = other.UX.ConfirmCancel
	}
}

func yamlHasPath(doc *yaml.Node, path ...string) bool {
	if doc == nil || len(path) == 0 {
		return false
	}

	// Document -> root mapping.
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	for _, key := range path {
		if n == nil || n.Kind != yaml.MappingNode {
			return false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			v := n.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.Value == key {
				next = v
				break
			}
		}
		if next == nil {
			return false
		}
		n = next
	}
	return true
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"alarm.dedup_window", c.Alarm.DedupWindow},
		{"alarm.safety_timeout", c.Alarm.SafetyTimeout},
		{"alarm.snooze_delay", c.Alarm.SnoozeDelay},
		{"alarm.recovery_staleness", c.Alarm.RecoveryStaleness},
		{"alarm.second_stop_delay", c.Alarm.SecondStopDelay},
		{"resources.wake_lock_ceiling", c.Resources.WakeLockCeiling},
		{"resources.foreground_ceiling", c.Resources.ForegroundCeiling},
		{"resources.audio_focus_ceiling", c.Resources.AudioFocusCeiling},
		{"resources.vibration_ceiling", c.Resources.VibrationCeiling},
		{"resources.vibration_interval", c.Resources.VibrationInterval},
		{"resources.retry_delay", c.Resources.RetryDelay},
		{"sound.restart_delay", c.Sound.RestartDelay},
		{"sound.health_interval", c.Sound.HealthInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.d))
		}
	}
	if c.Alarm.DefaultVolume < 0 || c.Alarm.DefaultVolume > 100 {
		errs = append(errs, fmt.Errorf("alarm.default_volume must be 0-100, got %d", c.Alarm.DefaultVolume))
	}
	if c.Resources.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("resources.retry_attempts must be at least 1, got %d", c.Resources.RetryAttempts))
	}
	for _, ms := range c.Resources.VibrationPatternMS {
		if ms < 0 {
			errs = append(errs, fmt.Errorf("resources.vibration_pattern_ms has negative entry %d", ms))
			break
		}
	}
	switch c.Store {
	case prefs.BackendFile, prefs.BackendSQLite, prefs.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", prefs.BackendFile, prefs.BackendSQLite, c.Store))
	}
	return errors.Join(errs...)
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	path := Path()
	if path == "" {
		return nil
	}

	// Create config directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, fsutil.DirPerm); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(path, data, fsutil.FilePerm)
}

// GetDataDir returns the resolved data directory path.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	return defaultDataDir()
}

// SoundDir returns the directory holding sound_1.mp3 … sound_8.mp3.
func (c *Config) SoundDir() string {
	if c.Sound.AssetDir != "" {
		return expandHome(c.Sound.AssetDir)
	}
	return filepath.Join(c.GetDataDir(), "sounds")
}

func expandHome(p string) string {
	// Expand ~ if present
	if p == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return p
	}

	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err == nil {
			trimmed := strings.TrimPrefix(p, "~/")
			trimmed = strings.TrimPrefix(trimmed, `~\`)
			trimmed = strings.TrimPrefix(trimmed, `\`)
			return filepath.Join(home, trimmed)
		}
	}
	return p
}

// LifecycleConfig returns the coordinator settings.
func (c *Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		DedupWindow:             c.Alarm.DedupWindow,
		SafetyTimeout:           c.Alarm.SafetyTimeout,
		SnoozeDelay:             c.Alarm.SnoozeDelay,
		SecondStopDelay:         c.Alarm.SecondStopDelay,
		DefaultVolume:           c.Alarm.DefaultVolume,
		RearmVibrationOnRefresh: c.Resources.RearmVibrationOnRefresh,
	}
}

// ResourceConfig returns the resource guard settings.
func (c *Config) ResourceConfig() resource.Config {
	pattern := make([]time.Duration, 0, len(c.Resources.VibrationPatternMS))
	for _, ms := range c.Resources.VibrationPatternMS {
		pattern = append(pattern, time.Duration(ms)*time.Millisecond)
	}
	return resource.Config{
		WakeLockCeiling:   c.Resources.WakeLockCeiling,
		ForegroundCeiling: c.Resources.ForegroundCeiling,
		AudioFocusCeiling: c.Resources.AudioFocusCeiling,
		VibrationCeiling:  c.Resources.VibrationCeiling,
		VibrationInterval: c.Resources.VibrationInterval,
		VibrationPattern:  pattern,
		RetryDelay:        c.Resources.RetryDelay,
		MaxAttempts:       c.Resources.RetryAttempts,
	}
}

// SoundConfig returns the tone loop settings.
func (c *Config) SoundConfig() sound.Config {
	return sound.Config{
		Enabled:        c.Sound.Enabled,
		AssetDir:       c.SoundDir(),
		RestartDelay:   c.Sound.RestartDelay,
		HealthInterval: c.Sound.HealthInterval,
	}
}

// NotifyConfig returns the notification settings.
func (c *Config) NotifyConfig() notify.Config {
	return notify.Config{
		Enabled: c.Notifications.Enabled,
		Sound:   c.Notifications.Sound,
	}
}

// LoggingConfig returns the logger settings. A configured file is opened
// for append; the caller closes the returned file when non-nil.
func (c *Config) LoggingConfig() (logging.Config, *os.File, error) {
	lc := logging.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	if c.Log.File == "" {
		return lc, nil, nil
	}

	path := expandHome(c.Log.File)
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirPerm); err != nil {
		return lc, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fsutil.FilePerm)
	if err != nil {
		return lc, nil, fmt.Errorf("open log file: %w", err)
	}
	lc.Output = f
	return lc, f, nil
}
