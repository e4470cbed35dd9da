package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Used in tests and local runs
// without redis.
type MemoryStore struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (ms *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	s, ok := ms.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (ms *MemoryStore) Save(_ context.Context, s *Session) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.sessions[s.ID] = s.clone()
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	delete(ms.sessions, id)
	return nil
}

func (ms *MemoryStore) Len() int {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return len(ms.sessions)
}
