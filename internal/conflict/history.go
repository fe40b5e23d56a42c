package conflict

import (
	"sync"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// HistorySink receives every resolution an Engine produces. Append is called
// once per batch with all of that batch's resolutions.
type HistorySink interface {
	Append(resolutions ...model.Resolution)
}

// MemoryHistory is an unbounded, append-only, in-process HistorySink.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []model.Resolution
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Append records resolutions atomically with respect to other callers.
func (h *MemoryHistory) Append(resolutions ...model.Resolution) {
	if len(resolutions) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, resolutions...)
}

// Len returns the number of recorded resolutions.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Snapshot returns a copy of the recorded resolutions in append order.
func (h *MemoryHistory) Snapshot() []model.Resolution {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Resolution, len(h.entries))
	copy(out, h.entries)
	return out
}
