package planner

// Status is the completion state of a batch.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Batch is an ordered run of entries handed to exactly one worker. Entry bytes
// live in a private arena so a batch outlives the list mapping it was cut from.
type Batch struct {
	ID     int
	Status Status
	// Code is the errno reported by the import primitive when Status is
	// StatusFailed.
	Code int

	buf  []byte
	ends []int
}

// Len returns the number of entries in the batch.
func (b *Batch) Len() int { return len(b.ends) }

// Entry returns the i-th entry.
func (b *Batch) Entry(i int) string {
	start := 0
	if i > 0 {
		start = b.ends[i-1]
	}
	return string(b.buf[start:b.ends[i]])
}

// Entries returns a copy of all entries in order.
func (b *Batch) Entries() []string {
	entries := make([]string, b.Len())
	for i := range entries {
		entries[i] = b.Entry(i)
	}
	return entries
}

// Release drops the arena once the owning worker has reported.
func (b *Batch) Release() {
	b.buf = nil
	b.ends = nil
}

func (b *Batch) add(entry []byte) {
	b.buf = append(b.buf, entry...)
	b.ends = append(b.ends, len(b.buf))
}
