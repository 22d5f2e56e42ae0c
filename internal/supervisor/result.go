package supervisor

import (
	"errors"
	"sort"

	"hsmimport/internal/hsm"
	"hsmimport/internal/importer"
	"hsmimport/internal/models"
	"hsmimport/internal/planner"
)

// maxExitCode keeps run failures clear of the shell's signal range.
const maxExitCode = 125

// RunResult aggregates every batch outcome of a run.
type RunResult struct {
	models.RunResult

	// PlanErr is set when planning stopped before the list was exhausted.
	PlanErr error `json:"-"`
	// FirstErr is the failure of the lowest-numbered failed batch, or
	// PlanErr when no batch failed.
	FirstErr error `json:"-"`

	firstBatch int
}

func (r *RunResult) add(res importer.Result) {
	r.Batches++
	r.Entries += res.Attempted
	r.Imported += res.Imported
	r.Skipped += res.Skipped

	if res.Status == planner.StatusSucceeded {
		return
	}

	r.FailedBatches++
	failure := models.BatchFailure{
		Batch: res.BatchID,
		Errno: int(res.Code),
	}
	if res.Err != nil {
		failure.Error = res.Err.Error()
	}
	var importErr *importer.ImportError
	if errors.As(res.Err, &importErr) {
		failure.Entry = importErr.Entry
		failure.Path = importErr.Path
	}
	r.Failures = append(r.Failures, failure)

	if r.FirstErr == nil || res.BatchID < r.firstBatch {
		r.FirstErr = res.Err
		r.firstBatch = res.BatchID
		r.FirstErrorCode = int(res.Code)
	}
}

func (r *RunResult) finish() {
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].Batch < r.Failures[j].Batch
	})

	if r.PlanErr != nil {
		r.PlanError = r.PlanErr.Error()
		if r.FirstErr == nil {
			r.FirstErr = r.PlanErr
			r.FirstErrorCode = int(hsm.Errno(r.PlanErr))
		}
	}
	if r.FirstErr != nil {
		r.FirstError = r.FirstErr.Error()
	}

	r.Status = models.StatusFailed
	if r.Success() {
		r.Status = models.StatusSuccess
	}
}

// Success reports whether every dispatched batch succeeded and planning
// consumed the whole list.
func (r *RunResult) Success() bool {
	return r.FailedBatches == 0 && r.PlanErr == nil
}

// ExitCode is zero on success, otherwise the number of failed batches plus
// one for a planning failure, capped at 125.
func (r *RunResult) ExitCode() int {
	if r.Success() {
		return 0
	}
	code := r.FailedBatches
	if r.PlanErr != nil {
		code++
	}
	return min(code, maxExitCode)
}
