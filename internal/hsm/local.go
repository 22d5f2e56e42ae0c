package hsm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend serves objects stored as regular files below Dir, the layout
// of a POSIX copytool archive.
type LocalBackend struct {
	Dir string
}

func (b LocalBackend) Stat(_ context.Context, name string) (Object, error) {
	clean := filepath.Clean("/" + name)
	if strings.Trim(clean, "/") == "" {
		return Object{}, fmt.Errorf("%w: invalid object name %q", ErrObjectNotFound, name)
	}

	info, err := os.Stat(filepath.Join(b.Dir, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return Object{}, err
	}
	if !info.Mode().IsRegular() {
		return Object{}, fmt.Errorf("%w: %s is not a regular file", ErrObjectNotFound, name)
	}

	return Object{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
