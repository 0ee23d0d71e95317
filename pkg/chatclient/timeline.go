package chatclient

import (
	"sort"
	"sync"
)

// Timeline holds the local view of one chat. Merging is idempotent and does
// not depend on arrival order.
type Timeline struct {
	mu   sync.RWMutex
	byID map[string]Message
}

func NewTimeline() *Timeline {
	return &Timeline{byID: make(map[string]Message)}
}

// Merge folds msgs into the timeline and reports how many entries changed.
func (t *Timeline) Merge(msgs ...Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := 0
	for _, incoming := range msgs {
		current, ok := t.byID[incoming.ID]
		if ok && !supersedes(incoming, current) {
			continue
		}
		t.byID[incoming.ID] = incoming
		changed++
	}
	return changed
}

// supersedes reports whether next should replace cur. A newer updatedAt wins;
// on a tie a tombstone beats a live copy.
func supersedes(next, cur Message) bool {
	switch {
	case next.UpdatedAt.After(cur.UpdatedAt):
		return true
	case next.UpdatedAt.Before(cur.UpdatedAt):
		return false
	default:
		return next.IsDeleted && !cur.IsDeleted
	}
}

func (t *Timeline) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msg, ok := t.byID[id]
	return msg, ok
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Messages returns a copy ordered by (createdAt, id).
func (t *Timeline) Messages() []Message {
	t.mu.RLock()
	out := make([]Message, 0, len(t.byID))
	for _, msg := range t.byID {
		out = append(out, msg)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
