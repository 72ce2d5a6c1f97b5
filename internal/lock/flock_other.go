//go:build !linux

package lock

import (
	"context"
	"fmt"
	"runtime"
)

// FileResource is only implemented for linux flock semantics. Other
// platforms supply their own Resource (the Windows Update subsystem has
// no lock files to contend on).
type FileResource struct {
	name string
}

var _ Resource = (*FileResource)(nil)

// NewFileResource creates a stub FileResource.
func NewFileResource(name string, paths ...string) *FileResource {
	return &FileResource{name: name}
}

// Name returns the resource name.
func (r *FileResource) Name() string { return r.name }

// TryAcquire reports that file locking is unavailable on this platform.
func (r *FileResource) TryAcquire(ctx context.Context) (func() error, bool, error) {
	return nil, false, fmt.Errorf("file lock resource not supported on %s", runtime.GOOS)
}
