//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// osascriptTimeout bounds one osascript run; it can stall while
// Notification Center asks for permission.
const osascriptTimeout = 10 * time.Second

// darwinNotifier posts through osascript. Delivered notifications cannot be
// withdrawn or replaced, so Close is a no-op and the Presenter's de-dup keeps
// refreshes from stacking banners.
type darwinNotifier struct{}

func newPlatformNotifier() Notifier {
	return darwinNotifier{}
}

func (darwinNotifier) IsSupported() bool {
	_, err := exec.LookPath("osascript")
	return err == nil
}

func (darwinNotifier) Send(note Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), osascriptTimeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, "osascript", "-e", appleScript(note)).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript notification %d: %w (%s)", note.ID, err, out)
	}
	return nil
}

func (darwinNotifier) Close(int) error { return nil }
