//go:build linux

package lock

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileResource guards a set of lock files with non-blocking flock, the
// same files apt and dpkg contend on (/var/lib/dpkg/lock,
// /var/lib/apt/lists/lock, ...). The resource counts as busy when any one
// file is held by another process.
type FileResource struct {
	name  string
	paths []string
}

var _ Resource = (*FileResource)(nil)

// NewFileResource creates a FileResource over the given lock files.
func NewFileResource(name string, paths ...string) *FileResource {
	return &FileResource{name: name, paths: paths}
}

// Name returns the resource name.
func (r *FileResource) Name() string { return r.name }

// TryAcquire flocks every lock file without blocking. Missing files are
// created; a single contended file releases everything taken so far and
// reports busy.
func (r *FileResource) TryAcquire(ctx context.Context) (func() error, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	held := make([]*os.File, 0, len(r.paths))
	releaseAll := func() error {
		var firstErr error
		for _, f := range held {
			if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, path := range r.paths {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640)
		if err != nil {
			_ = releaseAll()
			return nil, false, fmt.Errorf("open lock file %s: %w", path, err)
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = f.Close()
			_ = releaseAll()
			if err == unix.EWOULDBLOCK {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("flock %s: %w", path, err)
		}
		held = append(held, f)
	}

	return releaseAll, true, nil
}
