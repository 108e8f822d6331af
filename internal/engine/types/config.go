package types

import (
	"os"
	"path/filepath"
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// ChunkSize is the fixed read/write buffer used by the streaming loop.
// Cancellation is observed once per chunk, so this also bounds how much data
// can still land on disk after the cancel signal is set.
const ChunkSize = 8 * KB

// UnknownSize marks a transfer whose server sent no Content-Length.
const UnknownSize int64 = -1

// Watcher defaults
const (
	DefaultWatchInterval = 100 * time.Millisecond
	DefaultCancelKey     = "c"
)

// DefaultFilename is used when neither headers nor URL yield a file name.
const DefaultFilename = "download.bin"

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	CancelKey     string
	WatchInterval time.Duration
	LockDir       string
}

// GetCancelKey returns the configured cancel key or the default
func (r *RuntimeConfig) GetCancelKey() string {
	if r == nil || r.CancelKey == "" {
		return DefaultCancelKey
	}
	return r.CancelKey
}

// GetWatchInterval returns configured value or default
func (r *RuntimeConfig) GetWatchInterval() time.Duration {
	if r == nil || r.WatchInterval <= 0 {
		return DefaultWatchInterval
	}
	return r.WatchInterval
}

// GetLockDir returns the directory holding destination lock files.
func (r *RuntimeConfig) GetLockDir() string {
	if r == nil || r.LockDir == "" {
		return filepath.Join(os.TempDir(), "trackload-locks")
	}
	return r.LockDir
}
