package session

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"pkt.systems/culturessh/schema"
)

// Channel is the transport write handle of an open session channel.
type Channel interface {
	io.Writer
	Close() error
}

// Entry is the registry record of one connection.
type Entry struct {
	ChannelID string
	Channel   Channel
	Username  string
	State     *State
}

// Registry maps connection ids onto live sessions. All access goes through
// a single mutex held only for the duration of one operation.
type Registry struct {
	mu      sync.Mutex
	entries map[schema.ConnID]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[schema.ConnID]*Entry)}
}

// Register inserts entry under id, replacing any previous entry.
func (r *Registry) Register(id schema.ConnID, entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry
}

// RegisterNew inserts entry only when id has no live session. It reports
// whether the entry was inserted.
func (r *Registry) RegisterNew(id schema.ConnID, entry *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return false
	}
	r.entries[id] = entry
	return true
}

// WithSession runs fn on the entry for id under the registry lock. fn must
// not call back into the registry.
func (r *Registry) WithSession(id schema.ConnID, fn func(*Entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return schema.ErrSessionNotFound
	}
	return fn(entry)
}

// Remove deletes and returns the entry for id. Removing an absent id is a
// no-op that reports false.
func (r *Registry) Remove(id schema.ConnID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return entry, ok
}

// RemoveChannel deletes the entry for id only when it belongs to channelID.
func (r *Registry) RemoveChannel(id schema.ConnID, channelID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.ChannelID != channelID {
		return nil, false
	}
	delete(r.entries, id)
	return entry, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot lists live sessions ordered by connection id.
func (r *Registry) Snapshot() []schema.SessionInfo {
	r.mu.Lock()
	out := make([]schema.SessionInfo, 0, len(r.entries))
	for id, entry := range r.entries {
		out = append(out, schema.SessionInfo{
			ID:        id,
			ChannelID: entry.ChannelID,
			Username:  entry.Username,
			Mode:      entry.State.Mode().String(),
		})
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDAllocator hands out process-unique connection ids starting at 1.
type IDAllocator struct {
	next atomic.Uint64
}

// Next returns a fresh id.
func (a *IDAllocator) Next() schema.ConnID {
	return schema.ConnID(a.next.Add(1))
}
