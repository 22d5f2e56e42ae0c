// Package hsm implements the import primitive that registers an archived
// backend object under a path of the live filesystem.
//
// An import creates a sparse, released stub: the file gets the ownership,
// permissions and timestamps of the import root, the size of the backend
// object, and extended attributes naming the object it was imported from.
// Object content is not transferred.
package hsm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found in backend")
	// ErrPartialImport means a failed import left an incomplete file at the
	// destination; its existence says nothing about a previous import.
	ErrPartialImport = errors.New("incomplete import left at destination")
)

// Object describes an archived object as reported by a backend.
type Object struct {
	Name    string
	Size    int64
	ETag    string
	ModTime time.Time
}

// Backend looks up archived objects by name.
type Backend interface {
	Stat(ctx context.Context, name string) (Object, error)
}

// Importer registers the object name under dst using root as the attribute
// template.
type Importer interface {
	Import(ctx context.Context, dst, name string, root *ImportRoot) error
}

type StubImporter struct {
	Backend Backend
	Log     *slog.Logger
}

func NewStubImporter(backend Backend, log *slog.Logger) *StubImporter {
	if log == nil {
		log = slog.Default()
	}
	return &StubImporter{Backend: backend, Log: log}
}

func (s *StubImporter) Import(ctx context.Context, dst, name string, root *ImportRoot) error {
	obj, err := s.Backend.Stat(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up object %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), root.Mode|0o700); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", dst, err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, root.Mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	err = s.fill(f, obj, root)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", dst, closeErr)
	}
	if err != nil {
		return s.discard(dst, err)
	}
	return nil
}

// discard removes a partially built destination after cause.
func (s *StubImporter) discard(dst string, cause error) error {
	if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		s.Log.Error("failed to remove partial import", "path", dst, "error", rmErr)
		return fmt.Errorf("%w: %s: %w", ErrPartialImport, dst, cause)
	}
	return cause
}

func (s *StubImporter) fill(f *os.File, obj Object, root *ImportRoot) error {
	dst := f.Name()

	if err := f.Truncate(obj.Size); err != nil {
		return fmt.Errorf("failed to size %s to %d bytes: %w", dst, obj.Size, err)
	}

	// Ownership can only be given away by a privileged user; an unprivileged
	// import keeps the caller's ownership.
	if err := f.Chown(root.UID, root.GID); err != nil {
		if !errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("failed to chown %s: %w", dst, err)
		}
		s.Log.Debug("keeping caller ownership", "path", dst, "uid", root.UID, "gid", root.GID)
	}

	// The open mode is filtered by the umask.
	if err := f.Chmod(root.Mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, root.Atime, root.Mtime); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", dst, err)
	}

	// The marker goes last: a file carrying it is a complete import.
	if err := setMarker(dst, obj); err != nil {
		if !errors.Is(err, ErrMarkerUnsupported) {
			return fmt.Errorf("failed to tag %s: %w", dst, err)
		}
		s.Log.Debug("filesystem cannot store import marker", "path", dst)
	}
	return nil
}

// Errno extracts the errno carried by err, or EIO when there is none.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, fs.ErrNotExist) {
		return syscall.ENOENT
	}
	return syscall.EIO
}
