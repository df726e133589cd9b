package relay

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/zhouzirui/z-widget/backend/internal/metrics"
)

// Presence counts participant connections per conversation. A conversation
// is present while its count is positive; zero-count entries are deleted.
type Presence struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresence() *Presence {
	return &Presence{counts: make(map[string]int)}
}

// Connected records one more participant connection and reports whether the
// conversation just became present.
func (p *Presence) Connected(conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[conversationID]++
	became := p.counts[conversationID] == 1
	if became {
		metrics.PresentConversations.Set(float64(len(p.counts)))
	}
	return became
}

// Disconnected records one participant connection fewer and reports whether
// the conversation just became absent. Unknown conversations are ignored.
func (p *Presence) Disconnected(conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.counts[conversationID]
	if !ok {
		return false
	}
	if count > 1 {
		p.counts[conversationID] = count - 1
		return false
	}

	delete(p.counts, conversationID)
	metrics.PresentConversations.Set(float64(len(p.counts)))
	return true
}

// Snapshot returns the present conversations in ascending order.
func (p *Presence) Snapshot() []string {
	p.mu.Lock()
	ids := lo.Keys(p.counts)
	p.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Count returns the number of participant connections for a conversation.
func (p *Presence) Count(conversationID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[conversationID]
}
