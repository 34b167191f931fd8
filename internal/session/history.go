package session

import (
	"sync"
	"time"

	"github.com/coral-ai/proctor/internal/model"
)

// History is the ordered dialog context for one session. The room's read
// loop and the watchdog goroutine both append, so access is guarded.
type History struct {
	mu    sync.Mutex
	turns []model.Turn
}

// NewHistory returns an empty dialog history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn with the current time.
func (h *History) Append(role model.Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, model.Turn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Turns returns a copy of all turns in order.
func (h *History) Turns() []model.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// LastUserMessage scans backward for the most recent user turn. The second
// return value is false when no user turn exists yet.
func (h *History) LastUserMessage() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == model.RoleUser {
			return h.turns[i].Content, true
		}
	}
	return "", false
}

// Len returns the number of turns recorded so far.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
