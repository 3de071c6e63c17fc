package daemon

import (
	"fmt"
	"os"
	"time"

	"dwmm/internal/core/errors"
)

// Lock is an exclusive lock file. A lock whose mtime is older than the stale
// window is treated as abandoned and taken over.
type Lock struct {
	path string
}

// AcquireLock creates path exclusively. It fails with CodeLockConflict when a
// fresh lock is already held.
func AcquireLock(path string, stale time.Duration) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); cerr != nil {
				return nil, cerr
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "create lock file"), errors.CtxPath, path)
		}
		info, serr := os.Stat(path)
		if serr != nil {
			if os.IsNotExist(serr) {
				continue
			}
			return nil, serr
		}
		if time.Since(info.ModTime()) <= stale {
			break
		}
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, rerr
		}
	}
	return nil, errors.AddContext(errors.New(errors.CodeLockConflict, "another server is already running"), errors.CtxPath, path)
}

// Refresh touches the lock so it does not go stale.
func (l *Lock) Refresh() error {
	now := time.Now()
	return os.Chtimes(l.path, now, now)
}

func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Lock) Path() string { return l.path }

// WritePids records the daemon process in the pids file.
func WritePids(path string, pid int) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\tserver", pid)), 0o644)
}
