// Package presence maps authenticated users to their live transport session.
//
// A user has at most one current session: registering a new session for a
// user replaces the previous one, and unregistering a replaced session does
// not disturb the newer mapping.
package presence

import (
	"context"
	"sort"
	"sync"
)

// Registry is the presence registry. All operations are total; absence is
// reported as an empty result.
type Registry interface {
	Register(ctx context.Context, userID uint64, sessionID string)
	Unregister(ctx context.Context, sessionID string)
	Lookup(ctx context.Context, userID uint64) (string, bool)
	List(ctx context.Context) []uint64
	// Touch renews the lease of a live session in backends whose entries expire
	Touch(ctx context.Context, sessionID string)
}

// MemoryRegistry is a process-local Registry guarded by a mutex
type MemoryRegistry struct {
	mu       sync.RWMutex
	users    map[uint64]string // userID -> current sessionID
	sessions map[string]uint64 // sessionID -> userID
}

// NewMemoryRegistry creates an empty MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		users:    make(map[uint64]string),
		sessions: make(map[string]uint64),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, userID uint64, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A session re-authenticating as another user drops its old identity
	if prevUser, ok := r.sessions[sessionID]; ok && prevUser != userID {
		if r.users[prevUser] == sessionID {
			delete(r.users, prevUser)
		}
	}
	if prior, ok := r.users[userID]; ok && prior != sessionID {
		delete(r.sessions, prior)
	}

	r.users[userID] = sessionID
	r.sessions[sessionID] = userID
}

func (r *MemoryRegistry) Unregister(_ context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if r.users[userID] == sessionID {
		delete(r.users, userID)
	}
}

// Touch is a no-op: memory entries live and die with this process
func (r *MemoryRegistry) Touch(context.Context, string) {}

func (r *MemoryRegistry) Lookup(_ context.Context, userID uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.users[userID]
	return sessionID, ok
}

func (r *MemoryRegistry) List(_ context.Context) []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
