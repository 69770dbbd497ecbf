package room

import (
	"context"
	"sort"
	"sync"
)

// Store records which sessions are joined to which conversation rooms.
// A session may belong to several rooms at once.
type Store interface {
	Add(ctx context.Context, conversationID uint64, sessionID string) error
	Remove(ctx context.Context, conversationID uint64, sessionID string) error
	Members(ctx context.Context, conversationID uint64) ([]string, error)
	RoomsOf(ctx context.Context, sessionID string) ([]uint64, error)
	// Close empties a room and returns the sessions it held
	Close(ctx context.Context, conversationID uint64) ([]string, error)
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[uint64]map[string]struct{}
	sessions map[string]map[uint64]struct{}
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[uint64]map[string]struct{}),
		sessions: make(map[string]map[uint64]struct{}),
	}
}

func (s *MemoryStore) Add(_ context.Context, conversationID uint64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rooms[conversationID] == nil {
		s.rooms[conversationID] = make(map[string]struct{})
	}
	s.rooms[conversationID][sessionID] = struct{}{}

	if s.sessions[sessionID] == nil {
		s.sessions[sessionID] = make(map[uint64]struct{})
	}
	s.sessions[sessionID][conversationID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, conversationID uint64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(conversationID, sessionID)
	return nil
}

func (s *MemoryStore) removeLocked(conversationID uint64, sessionID string) {
	if members, ok := s.rooms[conversationID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(s.rooms, conversationID)
		}
	}
	if rooms, ok := s.sessions[sessionID]; ok {
		delete(rooms, conversationID)
		if len(rooms) == 0 {
			delete(s.sessions, sessionID)
		}
	}
}

func (s *MemoryStore) Members(_ context.Context, conversationID uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.rooms[conversationID]))
	for sid := range s.rooms[conversationID] {
		members = append(members, sid)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemoryStore) RoomsOf(_ context.Context, sessionID string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]uint64, 0, len(s.sessions[sessionID]))
	for id := range s.sessions[sessionID] {
		rooms = append(rooms, id)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms, nil
}

func (s *MemoryStore) Close(_ context.Context, conversationID uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]string, 0, len(s.rooms[conversationID]))
	for sid := range s.rooms[conversationID] {
		members = append(members, sid)
	}
	for _, sid := range members {
		s.removeLocked(conversationID, sid)
	}
	sort.Strings(members)
	return members, nil
}
