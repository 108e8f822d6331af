// Package cancel holds the cancellation flag shared between a running
// download and the goroutine watching for the cancel key.
package cancel

import (
	"sync"
	"sync/atomic"
)

// Signal is a set-once cancellation flag. The downloader reads it at chunk
// boundaries; the watcher is its only writer.
type Signal struct {
	set  atomic.Bool
	once sync.Once
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Cancel sets the signal. It reports whether this call was the one that set it.
func (s *Signal) Cancel() bool {
	first := false
	s.once.Do(func() {
		s.set.Store(true)
		first = true
	})
	return first
}

// Cancelled reports whether the signal has been set.
func (s *Signal) Cancelled() bool {
	return s.set.Load()
}

