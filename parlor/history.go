package parlor

import "sync"

// DefaultHistoryCapacity is used when a HistoryBuffer is created with a
// non-positive capacity.
const DefaultHistoryCapacity = 100

// HistoryBuffer is a bounded FIFO of received messages, local to one session.
// Once full, the oldest entries are evicted first.
type HistoryBuffer struct {
	mu       sync.Mutex
	capacity int
	messages []Message
}

// NewHistoryBuffer creates a buffer holding at most capacity messages.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryBuffer{
		capacity: capacity,
		messages: make([]Message, 0, capacity),
	}
}

// Append records one message, evicting the oldest entries if the buffer is
// over capacity.
func (h *HistoryBuffer) Append(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
	if over := len(h.messages) - h.capacity; over > 0 {
		h.messages = append(h.messages[:0], h.messages[over:]...)
	}
}

// Snapshot returns a copy of the buffered messages in arrival order. It is
// empty, never an error, when nothing has arrived yet.
func (h *HistoryBuffer) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of buffered messages.
func (h *HistoryBuffer) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
