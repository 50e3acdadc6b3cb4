package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalForeground_ReleaseOnce(t *testing.T) {
	fg := &localForeground{active: make(map[string]int)}
	r1, err := fg.Begin(context.Background(), "alarm", time.Minute)
	require.NoError(t, err)
	r2, err := fg.Begin(context.Background(), "alarm", time.Minute)
	require.NoError(t, err)

	require.NoError(t, r1.Release())
	require.NoError(t, r1.Release())
	assert.Equal(t, 1, fg.active["alarm"])

	require.NoError(t, r2.Release())
	assert.NotContains(t, fg.active, "alarm")
}

func TestNoVibrator(t *testing.T) {
	v := New().Vibrator
	assert.False(t, v.HasVibrator())
	assert.ErrorIs(t, v.Vibrate([]time.Duration{time.Second}), ErrUnsupported)
	assert.NoError(t, v.Cancel())
}

func TestFake_FailAcquireThenSucceed(t *testing.T) {
	f := NewFake()
	f.FailAcquire(WakeLock, 2)
	host := f.Host()

	for i := 0; i < 2; i++ {
		_, err := host.Power.AcquireWakeLock(context.Background(), "t", time.Minute)
		assert.ErrorIs(t, err, ErrInjected)
	}
	r, err := host.Power.AcquireWakeLock(context.Background(), "t", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Held(WakeLock))

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())
	assert.Equal(t, 0, f.Held(WakeLock))
	assert.Equal(t, 1, f.Released(WakeLock))
}

func TestFake_PanicOnRelease(t *testing.T) {
	f := NewFake()
	f.PanicOnRelease(AudioFocus)
	r, err := f.Host().Audio.RequestFocus(context.Background())
	require.NoError(t, err)

	assert.Panics(t, func() { _ = r.Release() })
	assert.False(t, f.HeldAny())
}
