package solver

// History is the ordered sequence of iteration metrics for one session.
// With a positive limit it keeps only the most recent limit entries.
type History struct {
	limit int
	buf   []IterationMetrics
	start int // index of the oldest entry once the ring is full
}

// NewHistory creates a history. limit <= 0 means unbounded.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// Append adds m as the newest entry.
func (h *History) Append(m IterationMetrics) {
	if h.limit == 0 || len(h.buf) < h.limit {
		h.buf = append(h.buf, m)
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % h.limit
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.buf)
}

// Reset drops all entries.
func (h *History) Reset() {
	h.buf = nil
	h.start = 0
}

// Slice returns a copy of the entries, oldest first.
func (h *History) Slice() []IterationMetrics {
	out := make([]IterationMetrics, 0, len(h.buf))
	out = append(out, h.buf[h.start:]...)
	out = append(out, h.buf[:h.start]...)
	return out
}
