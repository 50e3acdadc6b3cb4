package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDueOrder(t *testing.T) {
	start := time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, start.Add(2*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFakeStopPreventsCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing prevented")

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeCallbackMayReschedule(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		c.AfterFunc(5*time.Second, tick)
	}
	c.AfterFunc(5*time.Second, tick)

	c.Advance(16 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeNowInsideCallbackIsDueTime(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFake(start)
	var seen time.Time
	c.AfterFunc(10*time.Second, func() { seen = c.Now() })

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(10*time.Second), seen)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}
