package single

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockDestination takes an exclusive lock for destPath. Lock files live in
// lockDir, keyed by the absolute destination, so nothing is created beside
// the output file.
func lockDestination(lockDir, destPath string) (*flock.Flock, error) {
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	sum := sha256.Sum256([]byte(abs))
	lock := flock.New(filepath.Join(lockDir, hex.EncodeToString(sum[:12])+".lock"))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s is already being written by another download", destPath)
	}
	return lock, nil
}
