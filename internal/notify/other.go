//go:build !darwin && !linux

package notify

// newPlatformNotifier has no backend here; New falls back to a no-op.
func newPlatformNotifier() Notifier { return nil }
