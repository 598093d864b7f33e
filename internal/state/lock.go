package state

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

// LockSuffix names the lock file kept next to the state file.
const LockSuffix = ".lock"

// ErrStateLocked is returned when another process writes the state file.
var ErrStateLocked = ferrors.FileSystemError("state file is in use by another process").Build()

// WriterLock marks the holder as the only process allowed to write a state file.
type WriterLock struct {
	lock *flock.Flock
}

// LockWriter takes the writer lock for the state file at path without blocking.
func LockWriter(path string) (*WriterLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create data directory").
			Fatal().WithContext("path", path).Build()
	}
	lock := flock.New(path + LockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "acquire state lock").
			WithContext("path", lock.Path()).Build()
	}
	if !locked {
		return nil, ErrStateLocked.WithContext("path", lock.Path())
	}
	return &WriterLock{lock: lock}, nil
}

// Release gives the lock up. It is safe to call more than once.
func (l *WriterLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
