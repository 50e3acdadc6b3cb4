// Package sound plays the alarm tone on repeat until stopped.
package sound

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alarmclock/internal/clock"
)

// NumSounds is the number of bundled tones.
const NumSounds = 8

// NormalizeID maps out-of-range sound ids to 1.
func NormalizeID(soundID int) int {
	if soundID < 1 || soundID > NumSounds {
		return 1
	}
	return soundID
}

// AssetName returns the file name of the tone for soundID.
func AssetName(soundID int) string {
	return fmt.Sprintf("sound_%d.mp3", NormalizeID(soundID))
}

// Playback is one running tone. Done is closed when playback ends on its
// own; Err then reports why.
type Playback interface {
	Done() <-chan struct{}
	Err() error
	Stop() error
}

// Backend starts playback of a file at a volume percentage. A Playback
// repeats the file until stopped or until it fails.
type Backend interface {
	Play(ctx context.Context, path string, volume int) (Playback, error)
}

// Config controls the loop.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	AssetDir       string        `yaml:"asset_dir"`
	RestartDelay   time.Duration `yaml:"restart_delay"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		RestartDelay:   time.Second,
		HealthInterval: 5 * time.Second,
	}
}

// session is the tone for one alarm.
type session struct {
	alarmID int
	soundID int
	volume  int
	pb      Playback
	restart clock.Timer
	health  clock.Timer
}

func (s *session) stopTimers() {
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	if s.health != nil {
		s.health.Stop()
		s.health = nil
	}
}

// Loop keeps at most one tone playing. Playback that fails to start is
// retried after RestartDelay; playback found dead by the periodic health
// check is restarted.
type Loop struct {
	cfg     Config
	backend Backend
	clock   clock.Clock
	log     zerolog.Logger

	mu  sync.Mutex
	cur *session
}

// NewLoop returns a Loop playing through backend.
func NewLoop(cfg Config, backend Backend, clk clock.Clock, log zerolog.Logger) *Loop {
	return &Loop{cfg: cfg, backend: backend, clock: clk, log: log}
}

// Start plays soundID for alarmID. Calling Start again for the alarm that
// is already playing re-asserts playback without restarting a healthy tone.
func (l *Loop) Start(ctx context.Context, alarmID, soundID, volume int) {
	if !l.cfg.Enabled {
		return
	}
	soundID = NormalizeID(soundID)

	l.mu.Lock()
	if s := l.cur; s != nil && s.alarmID == alarmID && s.soundID == soundID && s.volume == volume {
		healthy := s.pb != nil && !finished(s.pb)
		l.mu.Unlock()
		if !healthy {
			l.play(ctx, s)
		}
		return
	}
	prev := l.cur
	s := &session{alarmID: alarmID, soundID: soundID, volume: volume}
	l.cur = s
	l.mu.Unlock()

	if prev != nil {
		l.halt(prev)
	}
	l.play(ctx, s)
}

// Stop silences whatever is playing and reports whether anything was.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	s := l.cur
	l.cur = nil
	l.mu.Unlock()

	if s == nil {
		return false
	}
	l.halt(s)
	return true
}

// StopAlarm stops playback only if it belongs to alarmID.
func (l *Loop) StopAlarm(alarmID int) bool {
	l.mu.Lock()
	s := l.cur
	if s == nil || s.alarmID != alarmID {
		l.mu.Unlock()
		return false
	}
	l.cur = nil
	l.mu.Unlock()

	l.halt(s)
	return true
}

// SetVolume changes the volume of the current tone by restarting it.
func (l *Loop) SetVolume(ctx context.Context, volume int) {
	l.mu.Lock()
	s := l.cur
	l.mu.Unlock()
	if s == nil || s.volume == volume {
		return
	}
	l.Start(ctx, s.alarmID, s.soundID, volume)
}

// Playing returns the alarm and sound currently playing.
func (l *Loop) Playing() (alarmID, soundID int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		return 0, 0, false
	}
	return l.cur.alarmID, l.cur.soundID, true
}

func (l *Loop) halt(s *session) {
	l.mu.Lock()
	s.stopTimers()
	pb := s.pb
	s.pb = nil
	l.mu.Unlock()

	if pb != nil {
		if err := pb.Stop(); err != nil {
			l.log.Warn().Err(err).Int("alarm_id", s.alarmID).Msg("failed to stop playback")
		}
	}
}

func (l *Loop) play(ctx context.Context, s *session) {
	path := filepath.Join(l.cfg.AssetDir, AssetName(s.soundID))
	pb, err := l.backend.Play(context.WithoutCancel(ctx), path, s.volume)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur != s {
		// Stopped while starting.
		if pb != nil {
			go func() { _ = pb.Stop() }()
		}
		return
	}
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}

	if err != nil {
		l.log.Warn().Err(err).Int("alarm_id", s.alarmID).Str("path", path).
			Dur("retry_in", l.cfg.RestartDelay).Msg("failed to start alarm sound")
		s.restart = l.clock.AfterFunc(l.cfg.RestartDelay, func() { l.play(ctx, s) })
		return
	}

	s.pb = pb
	l.log.Debug().Int("alarm_id", s.alarmID).Int("sound_id", s.soundID).Int("volume", s.volume).
		Msg("alarm sound started")
	if s.health == nil {
		l.scheduleHealthLocked(ctx, s)
	}
}

func (l *Loop) scheduleHealthLocked(ctx context.Context, s *session) {
	s.health = l.clock.AfterFunc(l.cfg.HealthInterval, func() {
		l.mu.Lock()
		if l.cur != s {
			l.mu.Unlock()
			return
		}
		dead := s.pb != nil && finished(s.pb)
		var cause error
		if dead {
			cause = s.pb.Err()
			s.pb = nil
		}
		l.scheduleHealthLocked(ctx, s)
		l.mu.Unlock()

		if dead {
			l.log.Info().Err(cause).Int("alarm_id", s.alarmID).Msg("alarm sound not playing, restarting")
			l.play(ctx, s)
		}
	})
}

func finished(pb Playback) bool {
	select {
	case <-pb.Done():
		return true
	default:
		return false
	}
}
