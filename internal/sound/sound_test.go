package sound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmclock/internal/clock"
)

func newTestLoop(t *testing.T) (*Loop, *FakeBackend, *clock.Fake) {
	t.Helper()
	backend := &FakeBackend{}
	clk := clock.NewFake(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.AssetDir = "/assets"
	return NewLoop(cfg, backend, clk, zerolog.Nop()), backend, clk
}

func TestAssetName(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{1, "sound_1.mp3"},
		{8, "sound_8.mp3"},
		{0, "sound_1.mp3"},
		{9, "sound_1.mp3"},
		{-3, "sound_1.mp3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AssetName(tt.id), "AssetName(%d)", tt.id)
	}
}

func TestLoop_StartAndStop(t *testing.T) {
	l, backend, _ := newTestLoop(t)

	l.Start(context.Background(), 4, 3, 70)
	plays := backend.Plays()
	require.Len(t, plays, 1)
	assert.Equal(t, "/assets/sound_3.mp3", plays[0].Path)
	assert.Equal(t, 70, plays[0].Volume)

	id, sound, ok := l.Playing()
	assert.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, 3, sound)

	assert.True(t, l.Stop())
	assert.True(t, plays[0].Stopped())
	assert.False(t, l.Stop(), "second stop finds nothing")
}

func TestLoop_ReassertDoesNotRestartHealthyTone(t *testing.T) {
	l, backend, _ := newTestLoop(t)
	ctx := context.Background()

	l.Start(ctx, 1, 1, 70)
	l.Start(ctx, 1, 1, 70)
	assert.Len(t, backend.Plays(), 1)
}

func TestLoop_NewAlarmReplacesTone(t *testing.T) {
	l, backend, _ := newTestLoop(t)
	ctx := context.Background()

	l.Start(ctx, 1, 1, 70)
	l.Start(ctx, 2, 5, 70)

	plays := backend.Plays()
	require.Len(t, plays, 2)
	assert.True(t, plays[0].Stopped())
	assert.Len(t, backend.Active(), 1)
}

func TestLoop_RetriesFailedStart(t *testing.T) {
	l, backend, clk := newTestLoop(t)
	backend.FailNext(2)

	l.Start(context.Background(), 1, 1, 70)
	assert.Empty(t, backend.Plays())

	clk.Advance(time.Second)
	assert.Empty(t, backend.Plays())

	clk.Advance(time.Second)
	assert.Len(t, backend.Plays(), 1)
}

func TestLoop_HealthCheckRestartsDeadPlayer(t *testing.T) {
	l, backend, clk := newTestLoop(t)
	l.Start(context.Background(), 1, 1, 70)

	backend.Plays()[0].Crash(errors.New("device busy"))
	clk.Advance(5 * time.Second)

	plays := backend.Plays()
	require.Len(t, plays, 2)
	assert.Len(t, backend.Active(), 1)

	clk.Advance(5 * time.Second)
	assert.Len(t, backend.Plays(), 2, "healthy tone is left alone")
}

func TestLoop_StopCancelsRetries(t *testing.T) {
	l, backend, clk := newTestLoop(t)
	backend.FailNext(1)

	l.Start(context.Background(), 1, 1, 70)
	l.Stop()
	clk.Advance(time.Minute)

	assert.Empty(t, backend.Plays())
	assert.Equal(t, 0, clk.Pending())
}

func TestLoop_StopAlarmOnlyMatchingID(t *testing.T) {
	l, backend, _ := newTestLoop(t)
	l.Start(context.Background(), 2, 1, 70)

	assert.False(t, l.StopAlarm(1))
	assert.Len(t, backend.Active(), 1)
	assert.True(t, l.StopAlarm(2))
	assert.Empty(t, backend.Active())
}

func TestLoop_SetVolumeRestartsTone(t *testing.T) {
	l, backend, _ := newTestLoop(t)
	ctx := context.Background()
	l.Start(ctx, 1, 1, 70)
	l.SetVolume(ctx, 40)

	plays := backend.Plays()
	require.Len(t, plays, 2)
	assert.Equal(t, 40, plays[1].Volume)
	assert.True(t, plays[0].Stopped())
}

func TestLoop_Disabled(t *testing.T) {
	backend := &FakeBackend{}
	l := NewLoop(Config{Enabled: false}, backend, clock.NewFake(time.Now()), zerolog.Nop())
	l.Start(context.Background(), 1, 1, 70)
	assert.Empty(t, backend.Plays())
}
