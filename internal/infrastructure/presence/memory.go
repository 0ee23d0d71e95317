package presence

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	domain "github.com/worknest/messaging-api/internal/domain/presence"
)

// MemoryStore keeps typing signals in process memory, split into shards by
// chat so that unrelated chats never contend for the same lock.
type MemoryStore struct {
	shards []*shard
}

type shard struct {
	mu    sync.Mutex
	chats map[string]map[string]domain.Typist
}

var _ domain.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store with the given shard count.
func NewMemoryStore(shards int) *MemoryStore {
	if shards <= 0 {
		shards = 32
	}
	s := &MemoryStore{shards: make([]*shard, shards)}
	for i := range s.shards {
		s.shards[i] = &shard{chats: make(map[string]map[string]domain.Typist)}
	}
	return s
}

func (s *MemoryStore) shardFor(chatID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Set records or refreshes a signal.
func (s *MemoryStore) Set(_ context.Context, chatID string, typist domain.Typist) error {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	typists, ok := sh.chats[chatID]
	if !ok {
		typists = make(map[string]domain.Typist)
		sh.chats[chatID] = typists
	}
	typists[typist.UserID] = typist
	return nil
}

// Clear removes a signal. Clearing an absent signal is fine.
func (s *MemoryStore) Clear(_ context.Context, chatID, userID string) error {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if typists, ok := sh.chats[chatID]; ok {
		delete(typists, userID)
		if len(typists) == 0 {
			delete(sh.chats, chatID)
		}
	}
	return nil
}

// Active returns live signals for chatID and drops the expired ones.
func (s *MemoryStore) Active(_ context.Context, chatID string, now time.Time, ttl time.Duration) ([]domain.Typist, error) {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	typists, ok := sh.chats[chatID]
	if !ok {
		return []domain.Typist{}, nil
	}

	out := make([]domain.Typist, 0, len(typists))
	for userID, t := range typists {
		if domain.Expired(t.LastSignal, now, ttl) {
			delete(typists, userID)
			continue
		}
		out = append(out, t)
	}
	if len(typists) == 0 {
		delete(sh.chats, chatID)
	}
	return out, nil
}

// Len reports how many chats currently hold at least one signal.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.chats)
		sh.mu.Unlock()
	}
	return n
}
