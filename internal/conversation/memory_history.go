package conversation

import (
	"context"
	"sync"
)

// MemoryHistoryStore keeps session histories in process memory. Used when no
// Redis address is configured and in tests; histories disappear with the
// process, which matches the single-session execution model.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	histories map[string][]ChatMessage
}

// NewMemoryHistoryStore creates an empty in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{histories: make(map[string][]ChatMessage)}
}

func (s *MemoryHistoryStore) Save(ctx context.Context, conversationID string, history []ChatMessage) error {
	cloned := make([]ChatMessage, len(history))
	copy(cloned, history)

	s.mu.Lock()
	s.histories[conversationID] = cloned
	s.mu.Unlock()
	return nil
}

func (s *MemoryHistoryStore) Load(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[conversationID]
	if !ok {
		return nil, nil
	}
	cloned := make([]ChatMessage, len(history))
	copy(cloned, history)
	return cloned, nil
}
