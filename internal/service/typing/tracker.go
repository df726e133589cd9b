package typing

import (
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is how long a typing signal stays valid without renewal.
const DefaultTimeout = 8 * time.Second

// Tracker holds the expiring typing state used by the polling endpoints,
// keyed by the conversation the signal is addressed to.
type Tracker struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	signals map[string]time.Time
}

// NewTracker returns a tracker whose signals expire after timeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout: timeout,
		now:     time.Now,
		signals: make(map[string]time.Time),
	}
}

// Mark records a typing signal for the conversation.
func (t *Tracker) Mark(conversationID string) {
	conversationID = strings.TrimSpace(conversationID)

	t.mu.Lock()
	t.signals[conversationID] = t.now()
	t.mu.Unlock()
}

// Clear forgets any pending signal for the conversation.
func (t *Tracker) Clear(conversationID string) {
	t.mu.Lock()
	delete(t.signals, strings.TrimSpace(conversationID))
	t.mu.Unlock()
}

// IsTyping reports whether a signal younger than the timeout exists. Stale
// entries are deleted on read.
func (t *Tracker) IsTyping(conversationID string) bool {
	conversationID = strings.TrimSpace(conversationID)

	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.signals[conversationID]
	if !ok {
		return false
	}
	if t.now().Sub(at) < t.timeout {
		return true
	}
	delete(t.signals, conversationID)
	return false
}

// Len returns the number of tracked conversations, stale ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.signals)
}
