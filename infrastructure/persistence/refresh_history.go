package persistence

import (
	"context"
	"sync"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

const defaultHistoryCapacity = 50

// MemoryRefreshHistory is a fixed-size ring of the latest runs.
type MemoryRefreshHistory struct {
	mu   sync.RWMutex
	runs []model.RefreshRun
	next int
	full bool
}

func NewMemoryRefreshHistory(capacity int) *MemoryRefreshHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &MemoryRefreshHistory{runs: make([]model.RefreshRun, capacity)}
}

func (h *MemoryRefreshHistory) Record(_ context.Context, run model.RefreshRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[h.next] = run
	h.next = (h.next + 1) % len(h.runs)
	if h.next == 0 {
		h.full = true
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *MemoryRefreshHistory) Recent(_ context.Context, limit int) ([]model.RefreshRun, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	size := h.next
	if h.full {
		size = len(h.runs)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]model.RefreshRun, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.next - 1 - i + len(h.runs)) % len(h.runs)
		out = append(out, h.runs[idx])
	}
	return out, nil
}
