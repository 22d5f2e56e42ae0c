package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/xattr"
	"golang.org/x/time/rate"

	"hsmimport/internal/hsm"
	"hsmimport/internal/planner"
)

// fakePrimitive creates an empty file for each import unless the entry is
// listed in fail, in which case it returns that errno without touching dst.
type fakePrimitive struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]syscall.Errno
	panic string
}

func (f *fakePrimitive) Import(_ context.Context, dst, name string, _ *hsm.ImportRoot) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if name == f.panic {
		panic("primitive crashed")
	}
	if errno, ok := f.fail[name]; ok {
		return &os.PathError{Op: "import", Path: dst, Err: errno}
	}
	fh, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return fh.Close()
}

type sliceSource struct {
	entries []string
	pos     int
}

func (s *sliceSource) Next() ([]byte, bool) {
	if s.pos >= len(s.entries) {
		return nil, false
	}
	s.pos++
	return []byte(s.entries[s.pos-1]), true
}

func newBatch(t *testing.T, entries ...string) *planner.Batch {
	t.Helper()
	p, err := planner.New(&sliceSource{entries: entries}, planner.Options{BatchSize: len(entries), EntryCapacity: 256})
	if err != nil {
		t.Fatalf("planner.New() error = %v", err)
	}
	b, err := p.Next()
	if err != nil {
		t.Fatalf("planner.Next() error = %v", err)
	}
	return b
}

func newWorker(root string, prim hsm.Importer) *Worker {
	return &Worker{Root: root, Template: &hsm.ImportRoot{Path: root, Mode: 0755}, Primitive: prim}
}

func TestRunSucceeds(t *testing.T) {
	root := t.TempDir()
	prim := &fakePrimitive{}
	b := newBatch(t, "a", "b", "c")

	res := newWorker(root, prim).Run(context.Background(), b)

	if res.Status != planner.StatusSucceeded || b.Status != planner.StatusSucceeded {
		t.Errorf("status = %v/%v, want %v", res.Status, b.Status, planner.StatusSucceeded)
	}
	if res.Imported != 3 || res.Skipped != 0 || res.Attempted != 3 {
		t.Errorf("Result = %+v, want 3 imported", res)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, prim.calls); diff != "" {
		t.Errorf("import order mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("entry %s not imported: %v", name, err)
		}
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	prim := &fakePrimitive{fail: map[string]syscall.Errno{"b": syscall.EACCES}}
	b := newBatch(t, "a", "b", "c")

	res := newWorker(root, prim).Run(context.Background(), b)

	if res.Status != planner.StatusFailed || b.Status != planner.StatusFailed {
		t.Fatalf("status = %v/%v, want %v", res.Status, b.Status, planner.StatusFailed)
	}
	if res.Code != syscall.EACCES || b.Code != int(syscall.EACCES) {
		t.Errorf("Code = %v/%d, want %v", res.Code, b.Code, syscall.EACCES)
	}
	if diff := cmp.Diff([]string{"a", "b"}, prim.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	var importErr *ImportError
	if !errors.As(res.Err, &importErr) {
		t.Fatalf("Err = %v, want *ImportError", res.Err)
	}
	if importErr.Entry != "b" || importErr.Path != root+"/b" {
		t.Errorf("ImportError = %+v, want entry b at %s/b", importErr, root)
	}
	if !errors.Is(res.Err, syscall.EACCES) {
		t.Errorf("Err does not wrap the primitive errno: %v", res.Err)
	}
}

func TestRunSkipsExistingDestination(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "b"), nil, 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}
	prim := &fakePrimitive{fail: map[string]syscall.Errno{"b": syscall.EEXIST}}
	b := newBatch(t, "a", "b", "c")

	res := newWorker(root, prim).Run(context.Background(), b)

	if res.Status != planner.StatusSucceeded {
		t.Fatalf("Status = %v, want %v (err %v)", res.Status, planner.StatusSucceeded, res.Err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Errorf("Result = %+v, want 2 imported and 1 skipped", res)
	}
}

func TestRunVerifyMarker(t *testing.T) {
	unsupported := fmt.Errorf("%w: %w", hsm.ErrMarkerUnsupported, syscall.ENOTSUP)

	tests := []struct {
		name     string
		marker   string
		err      error
		wantOK   bool
		wantCode syscall.Errno
	}{
		{"Matching marker", "b", nil, true, 0},
		{"No marker", "", nil, false, syscall.EEXIST},
		{"Marker of another entry", "other", nil, false, syscall.EEXIST},
		{"Filesystem without markers", "", unsupported, false, syscall.ENOTSUP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, "b"), nil, 0644); err != nil {
				t.Fatalf("Failed to create existing file: %v", err)
			}
			prim := &fakePrimitive{fail: map[string]syscall.Errno{"b": syscall.EEXIST}}
			w := newWorker(root, prim)
			w.VerifyMarker = true
			w.ReadMarker = func(path string) (string, error) {
				if path != root+"/b" {
					t.Errorf("ReadMarker(%q), want %q", path, root+"/b")
				}
				return tt.marker, tt.err
			}

			res := w.Run(context.Background(), newBatch(t, "a", "b"))

			if tt.wantOK {
				if res.Status != planner.StatusSucceeded || res.Skipped != 1 {
					t.Errorf("Result = %+v, want success with 1 skipped", res)
				}
				return
			}
			if res.Status != planner.StatusFailed {
				t.Fatalf("Status = %v, want %v", res.Status, planner.StatusFailed)
			}
			if res.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", res.Code, tt.wantCode)
			}
			if tt.err != nil && !errors.Is(res.Err, hsm.ErrMarkerUnsupported) {
				t.Errorf("Err = %v, want %v", res.Err, hsm.ErrMarkerUnsupported)
			}
		})
	}
}

func TestRunVerifyMarkerOnDisk(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "b")
	if err := os.WriteFile(dst, nil, 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}
	if err := xattr.LSet(dst, hsm.ObjectAttr, []byte("b")); err != nil {
		var xerr *xattr.Error
		if errors.As(err, &xerr) && (xerr.Err == syscall.ENOTSUP || xerr.Err == syscall.EOPNOTSUPP) {
			t.Skip("filesystem does not support extended attributes")
		}
		t.Fatalf("Failed to set marker: %v", err)
	}
	prim := &fakePrimitive{fail: map[string]syscall.Errno{"b": syscall.EEXIST}}
	w := newWorker(root, prim)
	w.VerifyMarker = true

	res := w.Run(context.Background(), newBatch(t, "a", "b"))

	if res.Status != planner.StatusSucceeded || res.Imported != 1 || res.Skipped != 1 {
		t.Errorf("Result = %+v, want 1 imported and 1 skipped", res)
	}
}

// partialPrimitive leaves a file behind and reports the import as partial.
type partialPrimitive struct{}

func (partialPrimitive) Import(_ context.Context, dst, _ string, _ *hsm.ImportRoot) error {
	if err := os.WriteFile(dst, nil, 0644); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %w", hsm.ErrPartialImport, dst, syscall.EIO)
}

func TestRunPartialImportIsNotSkipped(t *testing.T) {
	root := t.TempDir()

	res := newWorker(root, partialPrimitive{}).Run(context.Background(), newBatch(t, "a"))

	if res.Status != planner.StatusFailed {
		t.Fatalf("Status = %v, want %v", res.Status, planner.StatusFailed)
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
	if !errors.Is(res.Err, hsm.ErrPartialImport) || res.Code != syscall.EIO {
		t.Errorf("Err = %v (code %v), want partial import with EIO", res.Err, res.Code)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	prim := &fakePrimitive{panic: "b"}
	b := newBatch(t, "a", "b", "c")

	res := newWorker(t.TempDir(), prim).Run(context.Background(), b)

	if res.Status != planner.StatusFailed {
		t.Fatalf("Status = %v, want %v", res.Status, planner.StatusFailed)
	}
	var joinErr *JoinError
	if !errors.As(res.Err, &joinErr) {
		t.Fatalf("Err = %v, want *JoinError", res.Err)
	}
	if joinErr.BatchID != b.ID {
		t.Errorf("JoinError.BatchID = %d, want %d", joinErr.BatchID, b.ID)
	}
}

func TestRunWithLimiter(t *testing.T) {
	prim := &fakePrimitive{}
	w := newWorker(t.TempDir(), prim)
	w.Limiter = rate.NewLimiter(rate.Limit(1000), 10)

	res := w.Run(context.Background(), newBatch(t, "a", "b", "c", "d"))
	if res.Status != planner.StatusSucceeded || res.Imported != 4 {
		t.Errorf("Result = %+v, want 4 imported", res)
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		root     string
		entry    string
		expected string
	}{
		{"/mnt/lustre", "a", "/mnt/lustre/a"},
		{"/mnt/lustre", "dir/sub/file", "/mnt/lustre/dir/sub/file"},
		{"relative", "x", "relative/x"},
	}

	for _, tt := range tests {
		if got := destination(tt.root, tt.entry); got != tt.expected {
			t.Errorf("destination(%s, %s) = %s, want %s", tt.root, tt.entry, got, tt.expected)
		}
	}
}
