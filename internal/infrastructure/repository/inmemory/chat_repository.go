package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// ChatRepository implements chat.Repository.
type ChatRepository struct {
	store *Store
}

var _ chat.Repository = (*ChatRepository)(nil)

func (r *ChatRepository) Create(ctx context.Context, c *chat.Chat, members []*chat.Member) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.chats[c.ID]; exists {
		return conflict(ctx, "chat id already exists", "chat-id-taken")
	}
	if c.DirectKey != nil {
		if _, exists := s.data.directIdx[*c.DirectKey]; exists {
			return conflict(ctx, "direct chat already exists for this pair", "chat-direct-key-taken")
		}
	}
	if c.ProjectID != nil {
		if _, exists := s.data.projectIdx[*c.ProjectID]; exists {
			return conflict(ctx, "project chat already exists", "chat-project-taken")
		}
	}

	remember(ctx, s.data.chats, c.ID, cloneChat)
	s.data.chats[c.ID] = cloneChat(c)
	if c.DirectKey != nil {
		remember(ctx, s.data.directIdx, *c.DirectKey, same)
		s.data.directIdx[*c.DirectKey] = c.ID
	}
	if c.ProjectID != nil {
		remember(ctx, s.data.projectIdx, *c.ProjectID, same)
		s.data.projectIdx[*c.ProjectID] = c.ID
	}
	for _, m := range members {
		key := memberKey{m.ChatID, m.UserID}
		remember(ctx, s.data.members, key, cloneMember)
		s.data.members[key] = cloneMember(m)
	}
	return nil
}

func (r *ChatRepository) FindByID(ctx context.Context, id string) (*chat.Chat, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.chats[id]
	if !ok {
		return nil, notFound(ctx, "chat", "chat-not-found")
	}
	return cloneChat(c), nil
}

func (r *ChatRepository) FindByDirectKey(ctx context.Context, key string) (*chat.Chat, error) {
	return r.findIndexed(ctx, func(st state) (string, bool) {
		id, ok := st.directIdx[key]
		return id, ok
	})
}

func (r *ChatRepository) FindByProject(ctx context.Context, projectID string) (*chat.Chat, error) {
	return r.findIndexed(ctx, func(st state) (string, bool) {
		id, ok := st.projectIdx[projectID]
		return id, ok
	})
}

func (r *ChatRepository) findIndexed(ctx context.Context, lookup func(state) (string, bool)) (*chat.Chat, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := lookup(s.data)
	if !ok {
		return nil, notFound(ctx, "chat", "chat-not-found")
	}
	return cloneChat(s.data.chats[id]), nil
}

func (r *ChatRepository) Update(ctx context.Context, c *chat.Chat) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.chats[c.ID]
	if !ok {
		return notFound(ctx, "chat", "chat-not-found")
	}
	remember(ctx, s.data.chats, c.ID, cloneChat)
	existing.Name = cloneString(c.Name)
	existing.ImageURL = cloneString(c.ImageURL)
	return nil
}

func (r *ChatRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.chats[chatID]
	if !ok {
		return notFound(ctx, "chat", "chat-not-found")
	}
	if at.After(existing.UpdatedAt) {
		remember(ctx, s.data.chats, chatID, cloneChat)
		existing.UpdatedAt = at
	}
	return nil
}

func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.chats[id]
	if !ok {
		return notFound(ctx, "chat", "chat-not-found")
	}
	if existing.DirectKey != nil {
		remember(ctx, s.data.directIdx, *existing.DirectKey, same)
		delete(s.data.directIdx, *existing.DirectKey)
	}
	if existing.ProjectID != nil {
		remember(ctx, s.data.projectIdx, *existing.ProjectID, same)
		delete(s.data.projectIdx, *existing.ProjectID)
	}
	remember(ctx, s.data.chats, id, cloneChat)
	delete(s.data.chats, id)
	return nil
}

func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]*chat.Overview, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chat.Overview, 0)
	for key, m := range s.data.members {
		if key.userID != userID {
			continue
		}
		c, ok := s.data.chats[key.chatID]
		if !ok {
			continue
		}
		member := *m
		out = append(out, &chat.Overview{Chat: cloneChat(c), Membership: &member})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Chat, out[j].Chat
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

// MemberRepository implements chat.MemberRepository.
type MemberRepository struct {
	store *Store
}

var _ chat.MemberRepository = (*MemberRepository)(nil)

func (r *MemberRepository) Add(ctx context.Context, m *chat.Member) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.chats[m.ChatID]; !ok {
		return false, notFound(ctx, "chat", "chat-not-found")
	}
	key := memberKey{m.ChatID, m.UserID}
	if _, exists := s.data.members[key]; exists {
		return false, nil
	}
	remember(ctx, s.data.members, key, cloneMember)
	s.data.members[key] = cloneMember(m)
	return true, nil
}

func (r *MemberRepository) Find(ctx context.Context, chatID, userID string) (*chat.Member, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data.members[memberKey{chatID, userID}]
	if !ok {
		return nil, notFound(ctx, "membership", "member-not-found")
	}
	out := *m
	return &out, nil
}

func (r *MemberRepository) ListByChat(ctx context.Context, chatID string) ([]*chat.Member, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chat.Member, 0)
	for key, m := range s.data.members {
		if key.chatID == chatID {
			row := *m
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// Remove never deletes a row holding the ADMIN role.
func (r *MemberRepository) Remove(ctx context.Context, chatID string, userIDs []string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range userIDs {
		key := memberKey{chatID, id}
		if m, ok := s.data.members[key]; ok && m.Role != permission.ChatRoleAdmin {
			remember(ctx, s.data.members, key, cloneMember)
			delete(s.data.members, key)
		}
	}
	return nil
}

func (r *MemberRepository) DeleteByChat(ctx context.Context, chatID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.data.members {
		if key.chatID == chatID {
			remember(ctx, s.data.members, key, cloneMember)
			delete(s.data.members, key)
		}
	}
	return nil
}

func (r *MemberRepository) ToggleFavorite(ctx context.Context, chatID, userID string) (*chat.Member, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{chatID, userID}
	m, ok := s.data.members[key]
	if !ok {
		return nil, notFound(ctx, "membership", "member-not-found")
	}
	remember(ctx, s.data.members, key, cloneMember)
	m.IsFavorite = !m.IsFavorite
	out := *m
	return &out, nil
}

func conflict(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, message, nil, code)
}
