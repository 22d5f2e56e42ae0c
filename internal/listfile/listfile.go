// Package listfile exposes a newline-delimited list of object names backed by
// a read-only memory mapping of the list file.
package listfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	ErrSourceUnavailable = errors.New("list file unavailable")
	ErrMapFailure        = errors.New("cannot map list file")
)

// Source is a forward-only sequence of entries. It is not restartable and
// not safe for concurrent use.
type Source struct {
	path string
	file *os.File
	data []byte
	size int64
	pos  int

	closeOnce sync.Once
	closeErr  error
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrSourceUnavailable, path, err)
	}

	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrSourceUnavailable, path)
	}

	s := &Source{path: path, file: f, size: info.Size()}
	if s.size == 0 {
		return s, nil
	}
	if int64(int(s.size)) != s.size {
		f.Close()
		return nil, fmt.Errorf("%w: %s is too large to map (%d bytes)", ErrMapFailure, path, s.size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(s.size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrMapFailure, path, err)
	}
	s.data = data

	return s, nil
}

// Path returns the path the source was opened from.
func (s *Source) Path() string { return s.path }

// Size returns the exact byte length of the list file.
func (s *Source) Size() int64 { return s.size }

// Next returns the next non-empty entry. The returned slice aliases the
// mapping and is only valid until Close; callers must copy it to keep it.
// A trailing line without a newline is still returned.
func (s *Source) Next() ([]byte, bool) {
	for s.pos < len(s.data) {
		rest := s.data[s.pos:]
		end := bytes.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
			s.pos = len(s.data)
		} else {
			s.pos += end + 1
		}
		if end > 0 {
			return rest[:end], true
		}
	}
	return nil, false
}

// Close releases the mapping and the file. It is safe to call more than once;
// only the first call does any work.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.data != nil {
			if err := unix.Munmap(s.data); err != nil {
				s.closeErr = fmt.Errorf("failed to unmap %s: %w", s.path, err)
			}
			s.data = nil
		}
		s.pos = 0
		if err := s.file.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to close %s: %w", s.path, err)
		}
	})
	return s.closeErr
}
