package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func iterations(h *History) []int {
	var out []int
	for _, m := range h.Slice() {
		out = append(out, m.Iteration)
	}
	return out
}

func TestHistoryUnbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 1; i <= 100; i++ {
		h.Append(IterationMetrics{Iteration: i})
	}
	assert.Equal(t, 100, h.Len())
	assert.Equal(t, 1, h.Slice()[0].Iteration)
	assert.Equal(t, 100, h.Slice()[99].Iteration)
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 2; i++ {
		h.Append(IterationMetrics{Iteration: i})
	}
	assert.Equal(t, []int{1, 2}, iterations(h))

	for i := 3; i <= 7; i++ {
		h.Append(IterationMetrics{Iteration: i})
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []int{5, 6, 7}, iterations(h))
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(2)
	for i := 1; i <= 3; i++ {
		h.Append(IterationMetrics{Iteration: i})
	}
	h.Reset()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Slice())

	h.Append(IterationMetrics{Iteration: 9})
	assert.Equal(t, []int{9}, iterations(h))
}

func TestHistorySliceIsACopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(IterationMetrics{Iteration: 1})
	s := h.Slice()
	s[0].Iteration = 42
	assert.Equal(t, []int{1}, iterations(h))
}

func TestNegativeLimitIsUnbounded(t *testing.T) {
	h := NewHistory(-5)
	for i := 0; i < 10; i++ {
		h.Append(IterationMetrics{Iteration: i})
	}
	assert.Equal(t, 10, h.Len())
}
