// Package planner cuts the entry sequence of a list file into bounded batches.
package planner

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrAllocationFailure = errors.New("cannot allocate batch buffer")
	ErrCapacityExceeded  = errors.New("too many batches for configured limit")
	ErrEntryTooLong      = errors.New("entry exceeds entry capacity")
)

// Source yields entries in list order. The returned slice only has to stay
// valid until the next call.
type Source interface {
	Next() ([]byte, bool)
}

// Allocator returns an empty buffer with at least size bytes of capacity.
type Allocator func(size int) ([]byte, error)

func heapAllocator(size int) ([]byte, error) {
	return make([]byte, 0, size), nil
}

type Options struct {
	BatchSize int
	// MaxBatches caps the number of batches in one run; 0 means no cap.
	MaxBatches    int
	EntryCapacity int
	// MaxBatchBytes caps a single batch buffer; 0 means no cap.
	MaxBatchBytes int64
	Alloc         Allocator
}

type Planner struct {
	src     Source
	opts    Options
	planned int
	entries int
	err     error
}

func New(src Source, opts Options) (*Planner, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0, got %d", opts.BatchSize)
	}
	if opts.EntryCapacity <= 0 {
		return nil, fmt.Errorf("entry capacity must be greater than 0, got %d", opts.EntryCapacity)
	}
	if opts.MaxBatches < 0 {
		return nil, fmt.Errorf("max batches must not be negative, got %d", opts.MaxBatches)
	}
	if opts.Alloc == nil {
		opts.Alloc = heapAllocator
	}
	return &Planner{src: src, opts: opts}, nil
}

// Planned returns the number of batches produced so far.
func (p *Planner) Planned() int { return p.planned }

// Entries returns the number of entries placed into batches so far.
func (p *Planner) Entries() int { return p.entries }

// Next returns the next filled batch, or io.EOF once the source is exhausted.
// Any other error is final: planning stops and later calls return the same
// error. Entries read before an oversized entry are still returned as a short
// batch, and the error surfaces on the following call.
func (p *Planner) Next() (*Batch, error) {
	if p.err != nil {
		return nil, p.err
	}

	entry, ok := p.src.Next()
	if !ok {
		p.err = io.EOF
		return nil, p.err
	}

	if p.opts.MaxBatches > 0 && p.planned >= p.opts.MaxBatches {
		p.err = fmt.Errorf("%w: limit is %d batches of %d entries", ErrCapacityExceeded, p.opts.MaxBatches, p.opts.BatchSize)
		return nil, p.err
	}

	b, err := p.newBatch()
	if err != nil {
		p.err = err
		return nil, err
	}

	for {
		if len(entry) > p.opts.EntryCapacity {
			p.err = fmt.Errorf("%w: %d bytes, capacity %d: %.64q", ErrEntryTooLong, len(entry), p.opts.EntryCapacity, entry)
			if b.Len() == 0 {
				return nil, p.err
			}
			break
		}
		b.add(entry)
		p.entries++

		if b.Len() == p.opts.BatchSize {
			break
		}
		if entry, ok = p.src.Next(); !ok {
			p.err = io.EOF
			break
		}
	}

	p.planned++
	return b, nil
}

func (p *Planner) newBatch() (*Batch, error) {
	if p.opts.BatchSize > math.MaxInt/p.opts.EntryCapacity {
		return nil, fmt.Errorf("%w: %d entries of %d bytes overflows", ErrAllocationFailure, p.opts.BatchSize, p.opts.EntryCapacity)
	}
	size := p.opts.BatchSize * p.opts.EntryCapacity
	if p.opts.MaxBatchBytes > 0 && int64(size) > p.opts.MaxBatchBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocationFailure, size, p.opts.MaxBatchBytes)
	}

	buf, err := p.opts.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailure, err)
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: allocator returned no buffer", ErrAllocationFailure)
	}

	return &Batch{
		ID:     p.planned,
		Status: StatusPending,
		buf:    buf[:0],
		ends:   make([]int, 0, min(p.opts.BatchSize, 1024)),
	}, nil
}
