package job

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked signals that a render is already in flight for the product.
// Callers treat it as a normal idempotency outcome, not a failure.
var ErrLocked = errors.New("render already in flight")

// Lock is the per-product render mutex. The marker file's existence is the
// whole lock state: create-exclusive is the test-and-set, so the exclusion
// holds across processes and restarts. A crash between acquire and release
// leaves the marker behind as a visible stale-lock artifact.
type Lock struct {
	path string
}

// TryAcquire attempts to take the render lock for the job. It returns
// ErrLocked when the marker already exists.
func TryAcquire(p Paths) (Lock, error) {
	f, err := os.OpenFile(p.LockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return Lock{}, ErrLocked
		}
		return Lock{}, fmt.Errorf("acquire render lock for %s: %w", p.ProductID, err)
	}
	_ = f.Close()
	return Lock{path: p.LockFile}, nil
}

// Release removes the lock marker. Absence is tolerated so Release is safe
// to call more than once (and after an operator removed a stale marker).
func (l Lock) Release() error {
	if l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release render lock %s: %w", l.path, err)
	}
	return nil
}

// Locked reports whether the lock marker currently exists on disk.
func Locked(p Paths) bool {
	return fileExists(p.LockFile)
}
