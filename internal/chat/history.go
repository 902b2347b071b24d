package chat

import (
	"errors"
	"sync"
)

// ErrStaleEpoch is returned by Append when the history was reset after the
// given epoch was observed. The caller's in-flight output belongs to a
// conversation that no longer exists and must be discarded.
var ErrStaleEpoch = errors.New("history was reset since snapshot")

// History encapsulates conversation history with thread-safe access.
//
// The epoch increments on every Reset. Callers that stream a response take a
// Snapshot before starting and pass its epoch back to Append when done; a
// Reset in between invalidates the append.
//
// Note: The zero value is NOT useful - use NewHistory() to create instances.
type History struct {
	mu       sync.RWMutex
	messages []Message
	epoch    uint64
}

// NewHistory creates a new History instance.
func NewHistory() *History {
	return &History{
		messages: make([]Message, 0),
	}
}

// Snapshot returns a copy of all messages and the current epoch.
func (h *History) Snapshot() ([]Message, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]Message, len(h.messages))
	copy(result, h.messages)
	return result, h.epoch
}

// Messages returns a copy of all messages for thread-safe access.
func (h *History) Messages() []Message {
	msgs, _ := h.Snapshot()
	return msgs
}

// Append appends messages if the history has not been reset since epoch was
// observed. Returns ErrStaleEpoch otherwise, leaving the history untouched.
func (h *History) Append(epoch uint64, msgs ...Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if epoch != h.epoch {
		return ErrStaleEpoch
	}
	h.messages = append(h.messages, msgs...)
	return nil
}

// Add appends a user message and assistant response unconditionally.
// Use Append with a snapshot epoch when the response was streamed.
func (h *History) Add(userInput, assistantResponse string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, User(userInput), Assistant(assistantResponse))
}

// Count returns the number of messages.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Epoch returns the current epoch.
func (h *History) Epoch() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.epoch
}

// Reset removes all messages atomically and advances the epoch so that
// pending Appends from before the reset fail.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = make([]Message, 0)
	h.epoch++
}
