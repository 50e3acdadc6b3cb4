//go:build darwin

package platform

import (
	"context"
	"strconv"
	"time"
)

// darwinPower prevents idle sleep with caffeinate for at most the ceiling.
type darwinPower struct{}

func newPlatformPower() Power {
	return darwinPower{}
}

func (darwinPower) AcquireWakeLock(ctx context.Context, _ string, ceiling time.Duration) (Releaser, error) {
	if err := lookPathErr(ctx, "caffeinate"); err != nil {
		return nil, err
	}
	secs := max(1, int(ceiling.Seconds()))
	return startProcessLock("caffeinate", "-i", "-t", strconv.Itoa(secs))
}
