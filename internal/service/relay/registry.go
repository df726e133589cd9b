package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-widget/backend/internal/metrics"
)

// Sink is the outbound half of a transport connection. Send must not block:
// a transport that cannot accept a frame returns an error and schedules its
// own closure.
type Sink interface {
	Send(frame []byte) error
	Closed() bool
}

// Role classifies a registered connection.
type Role int

const (
	RoleUnset Role = iota
	RoleParticipant
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleParticipant:
		return "participant"
	case RoleAdmin:
		return "admin"
	default:
		return "unregistered"
	}
}

// Handle identifies a live connection in the registry.
type Handle string

// Record is the registry's view of one connection. Copies handed out by the
// registry are snapshots; the registry keeps the authoritative version.
type Record struct {
	Handle         Handle
	Sink           Sink
	Role           Role
	ConversationID string
	AdminPermitted bool
}

// Registered reports whether the connection has completed register.
func (r Record) Registered() bool { return r.Role != RoleUnset }

// Registry owns the set of live connections.
type Registry struct {
	mu      sync.RWMutex
	records map[Handle]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[Handle]*Record)}
}

// Add tracks a freshly accepted transport. Role and conversation stay unset
// until Finalize.
func (r *Registry) Add(sink Sink, adminPermitted bool) Handle {
	handle := Handle(uuid.NewString())

	r.mu.Lock()
	r.records[handle] = &Record{Handle: handle, Sink: sink, AdminPermitted: adminPermitted}
	r.mu.Unlock()

	metrics.Connections.WithLabelValues(RoleUnset.String()).Inc()
	return handle
}

// Finalize sets the role and conversation of a connection, once.
func (r *Registry) Finalize(handle Handle, role Role, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[handle]
	if !ok {
		return ErrUnknownConnection
	}
	if record.Registered() {
		return ErrAlreadyRegistered
	}

	record.Role = role
	record.ConversationID = conversationID

	metrics.Connections.WithLabelValues(RoleUnset.String()).Dec()
	metrics.Connections.WithLabelValues(role.String()).Inc()
	return nil
}

// Remove forgets a connection and returns its last state. Removing an
// unknown or already removed handle is a no-op reporting false.
func (r *Registry) Remove(handle Handle) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[handle]
	if !ok {
		return Record{}, false
	}
	delete(r.records, handle)

	metrics.Connections.WithLabelValues(record.Role.String()).Dec()
	return *record, true
}

// Lookup returns a snapshot of a live connection.
func (r *Registry) Lookup(handle Handle) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[handle]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Matching returns the live connections satisfying match at call time.
func (r *Registry) Matching(match func(Record) bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, record := range r.records {
		if match(*record) {
			out = append(out, *record)
		}
	}
	return out
}

// IsAnyParticipant reports whether a participant connection is registered
// for the conversation.
func (r *Registry) IsAnyParticipant(conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.Role == RoleParticipant && record.ConversationID == conversationID {
			return true
		}
	}
	return false
}

// Count returns the number of live connections in a role.
func (r *Registry) Count(role Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, record := range r.records {
		if record.Role == role {
			n++
		}
	}
	return n
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
