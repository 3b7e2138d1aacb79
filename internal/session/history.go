package session

import "sync"

// History is a bounded command history. When full, appending evicts the
// oldest entry.
type History struct {
	mu    sync.RWMutex
	lines []string
	limit int
}

// NewHistory returns a history bounded to limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 50
	}
	return &History{limit: limit}
}

// Add appends a line. Blank lines and immediate repeats are skipped.
func (h *History) Add(line string) {
	if line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.limit {
		h.lines = h.lines[len(h.lines)-h.limit:]
	}
}

// All returns a copy of the history, oldest first.
func (h *History) All() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Clear discards all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = nil
}

// Replace swaps the history contents, trimming to the bound.
func (h *History) Replace(lines []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(lines) > h.limit {
		lines = lines[len(lines)-h.limit:]
	}
	h.lines = make([]string, len(lines))
	copy(h.lines, lines)
}
