package supervisor

import (
	"io"
	"syscall"

	"hsmimport/internal/hsm"
	"hsmimport/internal/listfile"
	"hsmimport/internal/models"
	"hsmimport/internal/planner"
	"hsmimport/pkg/utils"
)

// Plan cuts the list into batches exactly as Run would, without importing
// anything or touching the list file.
func (s *Supervisor) Plan() (*models.PlanResult, error) {
	if _, err := hsm.NewImportRoot(s.opts.Root); err != nil {
		return nil, &SetupError{Code: hsm.Errno(err), Err: err}
	}

	src, err := listfile.Open(s.opts.ListFile)
	if err != nil {
		return nil, &SetupError{Code: syscall.EIO, Err: err}
	}
	defer src.Close()

	p, err := planner.New(src, planner.Options{
		BatchSize:     s.opts.BatchSize,
		MaxBatches:    s.opts.MaxBatches,
		EntryCapacity: s.opts.EntryCapacity,
		MaxBatchBytes: s.opts.MaxBatchBytes,
		Alloc:         s.opts.Alloc,
	})
	if err != nil {
		return nil, &SetupError{Code: syscall.EINVAL, Err: err}
	}

	plan := &models.PlanResult{
		ListFile:      s.opts.ListFile,
		ListSize:      src.Size(),
		ListSizeHuman: utils.FormatBytes(src.Size()),
		Destination:   s.opts.Root,
		BatchSize:     s.opts.BatchSize,
		Batches:       []models.PlannedBatch{},
		PlannedAt:     s.now(),
		DryRun:        true,
	}

	for {
		b, err := p.Next()
		if err != nil {
			if err != io.EOF {
				plan.PlanError = err.Error()
			}
			break
		}
		plan.Batches = append(plan.Batches, models.PlannedBatch{
			Batch:   b.ID,
			Entries: b.Len(),
			First:   b.Entry(0),
			Last:    b.Entry(b.Len() - 1),
		})
		b.Release()
	}

	plan.TotalBatches = p.Planned()
	plan.TotalEntries = p.Entries()
	return plan, nil
}
