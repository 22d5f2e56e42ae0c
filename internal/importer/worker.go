// Package importer runs the import primitive over the entries of one batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"hsmimport/internal/hsm"
	"hsmimport/internal/logging"
	"hsmimport/internal/planner"
)

// ImportError is a primitive failure that the existence check could not
// resolve. It stops the owning batch only.
type ImportError struct {
	Path  string
	Entry string
	Code  syscall.Errno
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("cannot import %q to %s: %v", e.Entry, e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// JoinError reports a worker that stopped without producing a normal result.
type JoinError struct {
	BatchID int
	Cause   any
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("worker for batch %d did not finish: %v", e.BatchID, e.Cause)
}

// Result is the completion message a worker sends for its batch.
type Result struct {
	BatchID   int
	Status    planner.Status
	Entries   int
	Attempted int
	Imported  int
	Skipped   int
	Code      syscall.Errno
	Err       error
}

type Worker struct {
	// Root is the destination root directory entries are imported below.
	Root      string
	Template  *hsm.ImportRoot
	Primitive hsm.Importer
	// Limiter, when set, throttles primitive calls across all workers.
	Limiter *rate.Limiter
	// VerifyMarker requires an existing destination to carry the import
	// marker of the entry before it is accepted as already imported.
	VerifyMarker bool
	// ReadMarker returns the object name recorded on a destination. It
	// defaults to hsm.ImportedFrom.
	ReadMarker func(path string) (string, error)
	Log        *slog.Logger
}

// Run imports the batch entries in order and stops at the first failure the
// existence check cannot explain. It never retries an entry.
func (w *Worker) Run(ctx context.Context, b *planner.Batch) (res Result) {
	log := logging.BatchLogger(w.logger(), b.ID, b.Len())
	res = Result{BatchID: b.ID, Entries: b.Len()}

	defer func() {
		if r := recover(); r != nil {
			b.Status = planner.StatusFailed
			b.Code = int(syscall.EIO)
			res.Status = planner.StatusFailed
			res.Code = syscall.EIO
			res.Err = &JoinError{BatchID: b.ID, Cause: r}
			log.Error("worker panicked", "error", res.Err)
		}
	}()

	b.Status = planner.StatusRunning

	for i := 0; i < b.Len(); i++ {
		entry := b.Entry(i)
		dst := destination(w.Root, entry)

		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				return w.fail(log, b, res, dst, entry, err)
			}
		}

		res.Attempted++
		err := w.Primitive.Import(ctx, dst, entry, w.Template)
		if err == nil {
			res.Imported++
			continue
		}

		if errors.Is(err, hsm.ErrPartialImport) {
			return w.fail(log, b, res, dst, entry, err)
		}

		done, verr := w.alreadyImported(log, dst, entry)
		if done {
			log.Info("already imported", "path", dst, "entry", entry)
			res.Skipped++
			continue
		}
		if verr != nil {
			err = verr
		}

		return w.fail(log, b, res, dst, entry, err)
	}

	b.Status = planner.StatusSucceeded
	res.Status = planner.StatusSucceeded
	return res
}

func (w *Worker) fail(log *slog.Logger, b *planner.Batch, res Result, dst, entry string, err error) Result {
	code := hsm.Errno(err)
	b.Status = planner.StatusFailed
	b.Code = int(code)

	res.Status = planner.StatusFailed
	res.Code = code
	res.Err = &ImportError{Path: dst, Entry: entry, Code: code, Err: err}

	log.Error("import failed, stopping batch",
		"path", dst, "entry", entry, "errno", int(code), "error", err,
		"remaining", b.Len()-res.Attempted)
	return res
}

// alreadyImported reports whether dst holds a previous import of entry. A
// non-nil error means the check itself could not be made.
func (w *Worker) alreadyImported(log *slog.Logger, dst, entry string) (bool, error) {
	if _, err := os.Lstat(dst); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error("cannot check destination", "path", dst, "error", err)
		}
		return false, nil
	}
	if !w.VerifyMarker {
		return true, nil
	}

	readMarker := w.ReadMarker
	if readMarker == nil {
		readMarker = hsm.ImportedFrom
	}
	name, err := readMarker(dst)
	if err != nil {
		log.Error("cannot read import marker", "path", dst, "error", err)
		return false, fmt.Errorf("cannot verify existing %s: %w", dst, err)
	}
	if name != entry {
		log.Error("destination exists but was not imported from this entry",
			"path", dst, "entry", entry, "marker", name)
		return false, nil
	}
	return true, nil
}

func (w *Worker) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

func destination(root, entry string) string {
	var sb strings.Builder
	sb.Grow(len(root) + 1 + len(entry))
	sb.WriteString(root)
	sb.WriteByte('/')
	sb.WriteString(entry)
	return sb.String()
}
