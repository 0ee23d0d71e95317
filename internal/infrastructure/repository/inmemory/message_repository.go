package inmemory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/domain/user"
)

// MessageRepository implements message.Repository.
type MessageRepository struct {
	store *Store
}

var _ message.Repository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(ctx context.Context, msg *message.Message) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.messages[msg.ID]; exists {
		return conflict(ctx, "message id already exists", "message-id-taken")
	}
	if _, ok := s.data.chats[msg.ChatID]; !ok {
		return notFound(ctx, "chat", "chat-not-found")
	}
	remember(ctx, s.data.messages, msg.ID, cloneMessage)
	s.data.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*message.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.data.messages[id]
	if !ok {
		return nil, notFound(ctx, "message", "message-not-found")
	}
	return cloneMessage(msg), nil
}

func (r *MessageRepository) FindByIDs(ctx context.Context, chatID string, ids []string) ([]*message.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*message.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := s.data.messages[id]; ok && msg.ChatID == chatID {
			out = append(out, cloneMessage(msg))
		}
	}
	return out, nil
}

func (r *MessageRepository) ListBefore(ctx context.Context, chatID string, before *message.Cursor, limit int) ([]*message.Message, error) {
	return r.collect(chatID, limit, newestFirst, func(m *message.Message) bool {
		return before == nil || olderThan(m, *before)
	}), nil
}

func (r *MessageRepository) ListChangedAfter(ctx context.Context, chatID string, after message.SyncPosition, limit int) ([]*message.Message, error) {
	less := func(a, b *message.Message) bool {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	}
	return r.collect(chatID, limit, less, func(m *message.Message) bool {
		return after.Before(m.Position())
	}), nil
}

func (r *MessageRepository) Search(ctx context.Context, chatID, query string, limit int) ([]*message.Message, error) {
	needle := strings.ToLower(query)
	return r.collect(chatID, limit, newestFirst, func(m *message.Message) bool {
		return !m.IsDeleted() && strings.Contains(strings.ToLower(m.Content), needle)
	}), nil
}

func (r *MessageRepository) ListWithAttachments(ctx context.Context, chatID string, limit int) ([]*message.Message, error) {
	return r.collect(chatID, limit, newestFirst, func(m *message.Message) bool {
		return !m.IsDeleted() && len(m.Attachments) > 0
	}), nil
}

func (r *MessageRepository) LatestByChats(ctx context.Context, chatIDs []string) (map[string]*message.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string]*message.Message, len(chatIDs))
	for _, msg := range s.data.messages {
		if _, ok := wanted[msg.ChatID]; !ok {
			continue
		}
		if current, ok := out[msg.ChatID]; !ok || newestFirst(msg, current) {
			out[msg.ChatID] = msg
		}
	}
	for id, msg := range out {
		out[id] = cloneMessage(msg)
	}
	return out, nil
}

func (r *MessageRepository) Edit(ctx context.Context, p message.EditParams) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.data.messages[p.ID]
	if !ok || msg.AuthorID != p.AuthorID || msg.IsDeleted() {
		return 0, nil
	}
	remember(ctx, s.data.messages, p.ID, cloneMessage)
	msg.Content = p.Content
	msg.Mentions = append([]string{}, p.Mentions...)
	msg.IsEdited = true
	msg.UpdatedAt = p.At
	return 1, nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id, authorID string, at time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.data.messages[id]
	if !ok || msg.AuthorID != authorID || msg.IsDeleted() {
		return 0, nil
	}
	remember(ctx, s.data.messages, id, cloneMessage)
	deletedAt := at
	msg.Content = message.DeletedPlaceholder
	msg.Attachments = []attachment.Descriptor{}
	msg.Mentions = []string{}
	msg.DeletedAt = &deletedAt
	msg.UpdatedAt = at
	return 1, nil
}

func (r *MessageRepository) DeleteByChat(ctx context.Context, chatID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, msg := range s.data.messages {
		if msg.ChatID == chatID {
			remember(ctx, s.data.messages, id, cloneMessage)
			delete(s.data.messages, id)
		}
	}
	return nil
}

func (r *MessageRepository) collect(chatID string, limit int, less func(a, b *message.Message) bool, keep func(*message.Message) bool) []*message.Message {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*message.Message, 0)
	for _, msg := range s.data.messages {
		if msg.ChatID == chatID && keep(msg) {
			out = append(out, cloneMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newestFirst(a, b *message.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func olderThan(m *message.Message, c message.Cursor) bool {
	if !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.Before(c.CreatedAt)
	}
	return m.ID < c.ID
}

// ReadStateRepository implements readstate.Repository.
type ReadStateRepository struct {
	store *Store
}

var _ readstate.Repository = (*ReadStateRepository)(nil)

func (r *ReadStateRepository) MarkRead(ctx context.Context, chatID, userID string, at time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{chatID, userID}
	m, ok := s.data.members[key]
	if !ok {
		return 0, nil
	}
	if at.After(m.LastRead) {
		remember(ctx, s.data.members, key, cloneMember)
		m.LastRead = at
	}
	return 1, nil
}

func (r *ReadStateRepository) UnreadCount(ctx context.Context, chatID, userID string) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data.members[memberKey{chatID, userID}]
	if !ok {
		return 0, notFound(ctx, "membership", "member-not-found")
	}
	return s.unreadLocked(m), nil
}

func (r *ReadStateRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	for key, m := range s.data.members {
		if key.userID == userID {
			out[key.chatID] = s.unreadLocked(m)
		}
	}
	return out, nil
}

func (s *Store) unreadLocked(m *chat.Member) int64 {
	var n int64
	for _, msg := range s.data.messages {
		if msg.ChatID == m.ChatID && msg.AuthorID != m.UserID && msg.CreatedAt.After(m.LastRead) {
			n++
		}
	}
	return n
}

// UserRepository implements user.Repository.
type UserRepository struct {
	store *Store
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	remember(ctx, s.data.users, u.ID, cloneUser)
	s.data.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.data.users[id]; ok {
			row := *u
			out = append(out, &row)
		}
	}
	return out, nil
}
