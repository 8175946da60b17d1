package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// lockRetryDelay is how often Lock polls a held lock.
const lockRetryDelay = 100 * time.Millisecond

// FileLock is a cross-process lock stored next to a database file, so two
// index runs against the same database never interleave.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates the lock for dbPath. The lock file is dbPath+".lock".
func NewFileLock(dbPath string) *FileLock {
	lockPath := dbPath + ".lock"
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock blocks until the lock is acquired or ctx ends.
func (l *FileLock) Lock(ctx context.Context) error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return rerrors.New(rerrors.ErrCodeLockHeld, "acquire index lock", err).WithDetail("path", l.path)
	}
	if !ok {
		return rerrors.New(rerrors.ErrCodeLockHeld, "index lock is held by another process", nil).
			WithDetail("path", l.path)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without waiting and reports whether it did.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Calling it on an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return rerrors.IOError("create lock directory", err)
	}
	return nil
}
