package telemetry

import "AlphaCrew/internal/domain/models"

// window is a fixed-capacity ring of invocation records; the oldest is evicted first.
// It is not safe for concurrent use; callers hold the producer lock.
type window struct {
	buf   []models.AgentInvocationRecord
	start int
	size  int
}

func newWindow(capacity int) *window {
	if capacity <= 0 {
		capacity = 1
	}
	return &window{buf: make([]models.AgentInvocationRecord, capacity)}
}

func (w *window) push(r models.AgentInvocationRecord) {
	c := len(w.buf)
	if w.size < c {
		w.buf[(w.start+w.size)%c] = r
		w.size++
		return
	}
	w.buf[w.start] = r
	w.start = (w.start + 1) % c
}

// records returns the window contents oldest first.
func (w *window) records() []models.AgentInvocationRecord {
	out := make([]models.AgentInvocationRecord, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

func (w *window) len() int { return w.size }

func (w *window) reset() {
	w.start, w.size = 0, 0
}
