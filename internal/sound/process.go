package sound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// ErrNoPlayer is returned when no supported command-line player is found.
var ErrNoPlayer = errors.New("sound: no audio player found")

// player describes a command-line audio player.
type player struct {
	name string
	args func(path string, volume int) []string
}

var players = map[string]player{
	"paplay": {
		name: "paplay",
		args: func(path string, volume int) []string {
			// PulseAudio volume: 65536 is 100%.
			return []string{"--volume=" + strconv.Itoa(volume*65536/100), path}
		},
	},
	"afplay": {
		name: "afplay",
		args: func(path string, volume int) []string {
			return []string{"-v", strconv.FormatFloat(float64(volume)/100, 'f', 2, 64), path}
		},
	},
	"ffplay": {
		name: "ffplay",
		args: func(path string, volume int) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(volume), path}
		},
	},
}

// ProcessBackend plays files by running an external player repeatedly.
type ProcessBackend struct {
	p player
}

// NewProcessBackend picks the first available player for this OS.
func NewProcessBackend() (*ProcessBackend, error) {
	order := []string{"paplay", "ffplay"}
	if runtime.GOOS == "darwin" {
		order = []string{"afplay", "ffplay"}
	}
	for _, name := range order {
		if _, err := exec.LookPath(name); err == nil {
			return &ProcessBackend{p: players[name]}, nil
		}
	}
	return nil, ErrNoPlayer
}

// Name returns the player command.
func (b *ProcessBackend) Name() string { return b.p.name }

// Play starts the player in a loop. A clean exit starts the next
// repetition; a failing exit ends the Playback with that error.
func (b *ProcessBackend) Play(ctx context.Context, path string, volume int) (Playback, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sound asset: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	pb := &processPlayback{cancel: cancel, done: make(chan struct{})}

	args := b.p.args(path, volume)
	first := exec.CommandContext(ctx, b.p.name, args...)
	if err := first.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", b.p.name, err)
	}

	go func() {
		defer close(pb.done)
		cmd := first
		for {
			err := cmd.Wait()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				pb.setErr(fmt.Errorf("%s exited: %w", b.p.name, err))
				return
			}
			cmd = exec.CommandContext(ctx, b.p.name, args...)
			if err := cmd.Start(); err != nil {
				pb.setErr(fmt.Errorf("restart %s: %w", b.p.name, err))
				return
			}
		}
	}()
	return pb, nil
}

type processPlayback struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (p *processPlayback) Done() <-chan struct{} { return p.done }

func (p *processPlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *processPlayback) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *processPlayback) Stop() error {
	p.cancel()
	<-p.done
	return nil
}

// Silent is a Backend that plays nothing. It is used when no player is
// installed so the rest of the lifecycle still runs.
type Silent struct{}

func (Silent) Play(context.Context, string, int) (Playback, error) {
	return silentPlayback{}, nil
}

type silentPlayback struct{}

func (silentPlayback) Done() <-chan struct{} { return nil }
func (silentPlayback) Err() error            { return nil }
func (silentPlayback) Stop() error           { return nil }
