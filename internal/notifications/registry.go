package notifications

import (
	"fmt"
	"sync"
)

// StreamRegistry tracks the live SSE streams per guardian and kind, for the
// health endpoint and for logging. Counting is best effort; a stream that
// dies without Remove is corrected on the guardian's next connect cycle
// only, so the numbers are operational signal, not accounting.
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]int
}

// NewStreamRegistry creates an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]int)}
}

func streamKey(kind string, guardianID int64) string {
	return fmt.Sprintf("%s:%d", kind, guardianID)
}

// Add registers one live stream and returns the count for that key.
func (r *StreamRegistry) Add(kind string, guardianID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := streamKey(kind, guardianID)
	r.streams[k]++
	return r.streams[k]
}

// Remove unregisters one live stream.
func (r *StreamRegistry) Remove(kind string, guardianID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := streamKey(kind, guardianID)
	if r.streams[k] <= 1 {
		delete(r.streams, k)
		return
	}
	r.streams[k]--
}

// Total returns the number of live streams across all guardians and kinds.
func (r *StreamRegistry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.streams {
		total += n
	}
	return total
}
