//go:build linux

package platform

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// linuxPower inhibits idle and sleep with systemd-inhibit for the lifetime
// of a child process bounded by the ceiling.
type linuxPower struct{}

func newPlatformPower() Power {
	return linuxPower{}
}

func (linuxPower) AcquireWakeLock(ctx context.Context, tag string, ceiling time.Duration) (Releaser, error) {
	if err := lookPathErr(ctx, "systemd-inhibit"); err != nil {
		return nil, err
	}
	secs := max(1, int(ceiling.Seconds()))
	return startProcessLock("systemd-inhibit",
		"--what=idle:sleep",
		"--who=alarmclock",
		fmt.Sprintf("--why=%s", tag),
		"--mode=block",
		"sleep", strconv.Itoa(secs),
	)
}
