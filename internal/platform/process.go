//go:build linux || darwin

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// processLock holds an inhibitor child process; releasing kills it.
type processLock struct {
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func startProcessLock(name string, args ...string) (*processLock, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	return &processLock{cmd: cmd}, nil
}

func (l *processLock) Release() error {
	l.once.Do(func() {
		if err := l.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			l.err = fmt.Errorf("kill %s: %w", l.cmd.Path, err)
		}
		_ = l.cmd.Wait()
	})
	return l.err
}

func lookPathErr(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnsupported, name)
	}
	return nil
}
