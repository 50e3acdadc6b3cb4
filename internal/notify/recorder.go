package notify

import "sync"

// Recorder is a Notifier that keeps what it was asked to do. It backs tests
// and headless runs with notifications disabled at the OS level.
type Recorder struct {
	mu     sync.Mutex
	sent   []Notification
	closed []int
	// Err, when set, is returned from Send.
	Err error
}

func (r *Recorder) Send(n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *Recorder) Close(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
	return nil
}

func (r *Recorder) IsSupported() bool { return true }

// Sent returns every notification sent so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Closed returns every id closed so far.
func (r *Recorder) Closed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.closed...)
}
