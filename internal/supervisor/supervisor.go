// Package supervisor drives an import run: it plans batches from the list
// file, feeds them to a fixed pool of workers, aggregates the per-batch
// results and removes the list file only when every batch succeeded.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"hsmimport/internal/hsm"
	"hsmimport/internal/importer"
	"hsmimport/internal/listfile"
	"hsmimport/internal/metrics"
	"hsmimport/internal/planner"
	"hsmimport/pkg/utils"
)

type Options struct {
	Root     string
	ListFile string

	BatchSize     int
	MaxBatches    int
	EntryCapacity int
	MaxBatchBytes int64
	Alloc         planner.Allocator

	// Workers bounds the number of batches imported at once.
	Workers      int
	ImportRate   float64
	VerifyMarker bool
}

type Supervisor struct {
	opts      Options
	primitive hsm.Importer
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func New(opts Options, primitive hsm.Importer, m *metrics.Metrics, log *slog.Logger) *Supervisor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		opts:      opts,
		primitive: primitive,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Run performs one import pass over the list file. The returned error is
// only non-nil for setup failures, before any batch was dispatched; every
// other outcome is reported through the RunResult.
func (s *Supervisor) Run(ctx context.Context) (*RunResult, error) {
	start := s.now()

	template, err := hsm.NewImportRoot(s.opts.Root)
	if err != nil {
		s.log.Error("cannot inspect import root", "path", s.opts.Root, "error", err)
		return nil, &SetupError{Code: hsm.Errno(err), Err: err}
	}

	src, err := listfile.Open(s.opts.ListFile)
	if err != nil {
		s.log.Error("cannot open import list", "path", s.opts.ListFile, "error", err)
		return nil, &SetupError{Code: syscall.EIO, Err: err}
	}

	p, err := planner.New(src, planner.Options{
		BatchSize:     s.opts.BatchSize,
		MaxBatches:    s.opts.MaxBatches,
		EntryCapacity: s.opts.EntryCapacity,
		MaxBatchBytes: s.opts.MaxBatchBytes,
		Alloc:         s.opts.Alloc,
	})
	if err != nil {
		src.Close()
		return nil, &SetupError{Code: syscall.EINVAL, Err: err}
	}

	worker := &importer.Worker{
		Root:         s.opts.Root,
		Template:     template,
		Primitive:    s.primitive,
		Limiter:      s.limiter(),
		VerifyMarker: s.opts.VerifyMarker,
		Log:          s.log,
	}

	result := &RunResult{}
	result.ListFile = s.opts.ListFile
	result.OperationTime = utils.FormatTime(start)

	s.dispatch(ctx, src, p, worker, result)

	result.finish()
	s.applyRetryGate(result)

	end := s.now()
	result.Duration = end.Sub(start).String()
	if s.metrics != nil {
		s.metrics.ObserveRun(end.Sub(start), result.Success(), end)
	}
	return result, nil
}

// dispatch hands planned batches to at most Workers concurrent imports and
// collects exactly one result per dispatched batch, even when planning stops
// early. Every import returns nil to the group so one failed batch never
// stops the others.
func (s *Supervisor) dispatch(ctx context.Context, src *listfile.Source, p *planner.Planner, w *importer.Worker, result *RunResult) {
	results := make(chan importer.Result)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			s.collect(result, res)
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	var planErr error
	for {
		b, err := p.Next()
		if err != nil {
			if err != io.EOF {
				s.log.Error("planning stopped", "path", src.Path(), "batches", p.Planned(), "error", err)
				planErr = err
			}
			break
		}

		// Go blocks while Workers batches are in flight.
		g.Go(func() error {
			res := w.Run(ctx, b)
			b.Release()
			results <- res
			return nil
		})
	}

	if err := src.Close(); err != nil {
		s.log.Error("cannot release import list", "path", src.Path(), "error", err)
	}

	_ = g.Wait()
	close(results)
	<-collected

	result.PlanErr = planErr
}

func (s *Supervisor) collect(result *RunResult, res importer.Result) {
	result.add(res)
	if s.metrics != nil {
		s.metrics.ObserveBatch(res)
	}
}

func (s *Supervisor) applyRetryGate(result *RunResult) {
	if !result.Success() {
		s.log.Error("import incomplete, keeping list for retry",
			"path", s.opts.ListFile, "failed_batches", result.FailedBatches, "error", result.FirstErr)
		return
	}

	if err := utils.RemoveFile(s.opts.ListFile); err != nil {
		s.log.Error("failed to delete import list", "path", s.opts.ListFile, "error", err)
		return
	}
	result.ListRemoved = true
}

func (s *Supervisor) limiter() *rate.Limiter {
	if s.opts.ImportRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(s.opts.ImportRate), max(1, int(s.opts.ImportRate)))
}

// SetupError is a failure before any batch was dispatched.
type SetupError struct {
	Code syscall.Errno
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
