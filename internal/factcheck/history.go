package factcheck

import (
	"sync"

	"github.com/ppiankov/labkit/internal/model"
)

const (
	// DefaultDisplay is how many recent checks are shown
	DefaultDisplay = 5

	defaultCapacity = 50
)

// History keeps the most recent claim checks of one session in memory
type History struct {
	mu       sync.Mutex
	items    []model.ClaimCheck
	capacity int
}

// NewHistory creates a history holding at most capacity checks (<=0 = default)
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &History{capacity: capacity}
}

// Add appends a check, dropping the oldest once full
func (h *History) Add(c model.ClaimCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, c)
	if over := len(h.items) - h.capacity; over > 0 {
		h.items = append([]model.ClaimCheck(nil), h.items[over:]...)
	}
}

// Recent returns up to n checks, newest first
func (h *History) Recent(n int) []model.ClaimCheck {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.items) {
		n = len(h.items)
	}

	out := make([]model.ClaimCheck, 0, n)
	for i := len(h.items) - 1; i >= len(h.items)-n; i-- {
		out = append(out, h.items[i])
	}
	return out
}

// Len returns the number of stored checks
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}
