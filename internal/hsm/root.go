package hsm

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

var ErrRootUnavailable = errors.New("import root unavailable")

// ImportRoot is the attribute template every imported file inherits from the
// destination root directory. Size is always zero; the real size comes from
// the backend. It is never modified after NewImportRoot returns.
type ImportRoot struct {
	Path  string
	Mode  os.FileMode
	UID   int
	GID   int
	Atime time.Time
	Mtime time.Time
	Size  int64
}

// NewImportRoot inspects dir and derives the import template from it.
func NewImportRoot(dir string) (*ImportRoot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnavailable, dir, syscall.ENOTDIR)
	}

	uid, gid, atime := ownerAndAtime(info)
	return &ImportRoot{
		Path:  dir,
		Mode:  info.Mode().Perm(),
		UID:   uid,
		GID:   gid,
		Atime: atime,
		Mtime: info.ModTime(),
	}, nil
}
