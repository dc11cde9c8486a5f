package state

// Journal is an undo log. Every mutation of ledger state registers the
// closure that restores the previous value; reverting to a snapshot replays
// those closures newest first.
type Journal struct {
	entries []func()
}

// Snapshot returns an identifier for the current journal position.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// Append records an undo closure.
func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// RevertToSnapshot undoes every mutation recorded after id.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	if id < len(j.entries) {
		j.entries = j.entries[:id]
	}
}

// Reset drops all entries, making the recorded mutations permanent.
func (j *Journal) Reset() {
	j.entries = nil
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Set assigns value to *ptr and journals the previous value.
func Set[T any](j *Journal, ptr *T, value T) {
	prev := *ptr
	j.Append(func() { *ptr = prev })
	*ptr = value
}

// SetKey assigns m[key] and journals the previous entry, including its absence.
func SetKey[K comparable, V any](j *Journal, m map[K]V, key K, value V) {
	prev, existed := m[key]
	j.Append(func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
	m[key] = value
}

// DeleteKey removes m[key] and journals the removed entry.
func DeleteKey[K comparable, V any](j *Journal, m map[K]V, key K) {
	prev, existed := m[key]
	if !existed {
		return
	}
	j.Append(func() { m[key] = prev })
	delete(m, key)
}

// Push appends value to *slice and journals the previous length.
func Push[T any](j *Journal, slice *[]T, value T) {
	prevLen := len(*slice)
	j.Append(func() { *slice = (*slice)[:prevLen] })
	*slice = append(*slice, value)
}
