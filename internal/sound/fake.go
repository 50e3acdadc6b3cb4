package sound

import (
	"context"
	"errors"
	"sync"
)

// ErrFakeStart is returned by FakeBackend when told to fail.
var ErrFakeStart = errors.New("sound: fake start failure")

// FakeBackend records playbacks for tests.
type FakeBackend struct {
	mu       sync.Mutex
	failNext int
	plays    []*FakePlayback
}

// FailNext makes the next n Play calls fail.
func (b *FakeBackend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
}

func (b *FakeBackend) Play(_ context.Context, path string, volume int) (Playback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return nil, ErrFakeStart
	}
	pb := &FakePlayback{Path: path, Volume: volume, done: make(chan struct{})}
	b.plays = append(b.plays, pb)
	return pb, nil
}

// Plays returns every playback started.
func (b *FakeBackend) Plays() []*FakePlayback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakePlayback(nil), b.plays...)
}

// Active returns the playbacks not yet stopped or crashed.
func (b *FakeBackend) Active() []*FakePlayback {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*FakePlayback
	for _, pb := range b.plays {
		if !pb.ended() {
			out = append(out, pb)
		}
	}
	return out
}

// FakePlayback is a playback controlled by the test.
type FakePlayback struct {
	Path   string
	Volume int

	mu      sync.Mutex
	done    chan struct{}
	err     error
	stopped bool
	closed  bool
}

func (p *FakePlayback) Done() <-chan struct{} { return p.done }

func (p *FakePlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *FakePlayback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.closeLocked()
	return nil
}

// Crash ends the playback with err, as if the player died.
func (p *FakePlayback) Crash(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	p.closeLocked()
}

// Stopped reports whether Stop was called.
func (p *FakePlayback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *FakePlayback) ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePlayback) closeLocked() {
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}
