package log

import (
	"fmt"
	"io"
	"sync"
)

// CircularBuffer is a thread-safe ring of recent writes that implements
// [io.Writer]. When full, the oldest entry is overwritten. It is used to hold
// back status output (e.g. in quiet mode) so that it can be replayed for
// context when something goes wrong.
type CircularBuffer struct {
	entries  [][]byte
	capacity int
	head     int
	size     int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity entries.
func NewCircularBuffer(capacity int) *CircularBuffer {
	if capacity <= 0 {
		capacity = 100
	}

	return &CircularBuffer{
		entries:  make([][]byte, capacity),
		capacity: capacity,
	}
}

// Write stores p as one entry, copying it so callers may reuse the slice.
func (cb *CircularBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	entry := make([]byte, len(p))
	copy(entry, p)

	cb.entries[cb.head] = entry
	cb.head = (cb.head + 1) % cb.capacity

	if cb.size < cb.capacity {
		cb.size++
	}

	return len(p), nil
}

// Entries returns copies of the stored entries, oldest first.
func (cb *CircularBuffer) Entries() [][]byte {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.size == 0 {
		return nil
	}

	result := make([][]byte, 0, cb.size)

	start := 0
	if cb.size == cb.capacity {
		start = cb.head
	}

	for i := range cb.size {
		entry := cb.entries[(start+i)%cb.capacity]
		cp := make([]byte, len(entry))
		copy(cp, entry)

		result = append(result, cp)
	}

	return result
}

// Size returns the current number of entries.
func (cb *CircularBuffer) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return cb.size
}

// Capacity returns the maximum number of entries.
func (cb *CircularBuffer) Capacity() int {
	return cb.capacity
}

// Clear removes all entries.
func (cb *CircularBuffer) Clear() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.size = 0
	cb.head = 0
	for i := range cb.entries {
		cb.entries[i] = nil
	}
}

// WriteTo replays all stored entries to w, oldest first.
func (cb *CircularBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for _, entry := range cb.Entries() {
		n, err := w.Write(entry)
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("writing entry: %w", err)
		}
	}

	return total, nil
}
