package cancel

import (
	"strings"
	"time"

	"github.com/trackload/trackload/internal/utils"
)

// Watcher polls a stream of key presses for the cancel key.
type Watcher struct {
	Keys      <-chan string
	CancelKey string
	Interval  time.Duration

	// OnCancel, if set, runs once just before the signal is set.
	OnCancel func()
}

// NewWatcher creates a watcher over keys. Matching is case-insensitive.
func NewWatcher(keys <-chan string, cancelKey string, interval time.Duration) *Watcher {
	return &Watcher{
		Keys:      keys,
		CancelKey: cancelKey,
		Interval:  interval,
	}
}

// Watch polls every Interval until either the cancel key arrives, in which
// case it sets signal and returns true, or finished is closed, in which case
// it returns false and leaves signal untouched.
func (w *Watcher) Watch(signal *Signal, finished <-chan struct{}) bool {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	keys := w.Keys
	for {
		select {
		case <-finished:
			return false
		case <-ticker.C:
		}
		// select picks randomly when both are ready; a finished download wins.
		select {
		case <-finished:
			return false
		default:
		}

		var pressed bool
		pressed, keys = w.drain(keys)
		if pressed {
			if w.OnCancel != nil {
				w.OnCancel()
			}
			signal.Cancel()
			utils.Debug("Cancel key %q pressed", w.CancelKey)
			return true
		}
	}
}

// drain consumes every key already waiting without blocking. A closed
// stream is replaced by nil so later polls skip it.
func (w *Watcher) drain(keys <-chan string) (bool, <-chan string) {
	for keys != nil {
		select {
		case key, ok := <-keys:
			if !ok {
				return false, nil
			}
			if w.matches(key) {
				return true, keys
			}
		default:
			return false, keys
		}
	}
	return false, nil
}

func (w *Watcher) matches(key string) bool {
	return strings.EqualFold(key, w.CancelKey)
}
