package message

import (
	"context"
	"time"

	"github.com/worknest/messaging-api/internal/domain/chat"
)

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	FindByID(ctx context.Context, id string) (*Message, error)
	FindByIDs(ctx context.Context, chatID string, ids []string) ([]*Message, error)
	// ListBefore returns up to limit messages newest-first, strictly older than before when set.
	ListBefore(ctx context.Context, chatID string, before *Cursor, limit int) ([]*Message, error)
	// ListChangedAfter returns messages positioned strictly after the given
	// (UpdatedAt, ID) ordered by (UpdatedAt, ID).
	ListChangedAfter(ctx context.Context, chatID string, after SyncPosition, limit int) ([]*Message, error)
	// Search matches non-deleted content case-insensitively, newest-first.
	Search(ctx context.Context, chatID, query string, limit int) ([]*Message, error)
	ListWithAttachments(ctx context.Context, chatID string, limit int) ([]*Message, error)
	LatestByChats(ctx context.Context, chatIDs []string) (map[string]*Message, error)
	// Edit applies p in a single conditional write and reports the affected rows.
	Edit(ctx context.Context, p EditParams) (int64, error)
	// SoftDelete tombstones the message when it is live and owned by authorID.
	SoftDelete(ctx context.Context, id, authorID string, at time.Time) (int64, error)
	DeleteByChat(ctx context.Context, chatID string) error
}

// Membership is the slice of the chat directory the message store relies on.
type Membership interface {
	chat.Gate
	Touch(ctx context.Context, chatID string, at time.Time) error
}
