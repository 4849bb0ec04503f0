package app

// sequenceTracker decides whether a multi-part record group has been
// fully received. It keeps a received-part count per trigger number:
// created on the first part, incremented per part, and deleted exactly
// once when the group completes.
//
// Not safe for concurrent use; only the worker goroutine touches it.
type sequenceTracker struct {
	counts map[uint64]uint32
}

func newSequenceTracker() *sequenceTracker {
	return &sequenceTracker{counts: make(map[uint64]uint32)}
}

// Observe records one received part for the trigger number and reports
// whether the group is now complete.
//
// maxSequenceNumber is the zero-based highest part index, so a group is
// complete when the one-based part count strictly exceeds it. A max of
// zero means the record is self-contained and no entry is ever kept.
func (t *sequenceTracker) Observe(triggerNumber uint64, maxSequenceNumber uint16) bool {
	if maxSequenceNumber == 0 {
		return true
	}

	count := t.counts[triggerNumber] + 1
	if count > uint32(maxSequenceNumber) {
		delete(t.counts, triggerNumber)
		return true
	}
	t.counts[triggerNumber] = count
	return false
}

// Pending returns the number of trigger numbers with incomplete groups.
func (t *sequenceTracker) Pending() int {
	return len(t.counts)
}
