package chat

import (
	"context"
	"time"
)

// Repository persists chats. Create must report a CONFLICT platform error when the
// chat's DirectKey or ProjectID is already taken.
type Repository interface {
	Create(ctx context.Context, chat *Chat, members []*Member) error
	FindByID(ctx context.Context, id string) (*Chat, error)
	FindByDirectKey(ctx context.Context, key string) (*Chat, error)
	FindByProject(ctx context.Context, projectID string) (*Chat, error)
	Update(ctx context.Context, chat *Chat) error
	Touch(ctx context.Context, chatID string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string) ([]*Overview, error)
}

// MemberRepository persists membership rows. Add ignores rows that already exist
// and reports whether it inserted one.
type MemberRepository interface {
	Add(ctx context.Context, member *Member) (bool, error)
	Find(ctx context.Context, chatID, userID string) (*Member, error)
	ListByChat(ctx context.Context, chatID string) ([]*Member, error)
	Remove(ctx context.Context, chatID string, userIDs []string) error
	DeleteByChat(ctx context.Context, chatID string) error
	ToggleFavorite(ctx context.Context, chatID, userID string) (*Member, error)
}

// MessagePurger removes every message of a chat. It is called inside the
// transaction that deletes the chat.
type MessagePurger interface {
	DeleteByChat(ctx context.Context, chatID string) error
}

// Gate is the membership check used by services scoped to a single chat.
type Gate interface {
	RequireMember(ctx context.Context, chatID, userID string) (*Member, error)
}
