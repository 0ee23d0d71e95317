package dbschema

import (
	"time"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/permission"
)

// TableName specifies the table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// Chat is the persisted conversation container.
type Chat struct {
	ID        string  `gorm:"primaryKey;size:64"`
	Kind      string  `gorm:"size:16;not null"`
	Name      *string `gorm:"size:255"`
	ImageURL  *string `gorm:"type:text"`
	ProjectID *string `gorm:"size:128"`
	DirectKey *string `gorm:"size:300"`
	CreatedBy string  `gorm:"size:128;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// NewSchemaChat converts a domain chat into a schema instance.
func NewSchemaChat(c *chat.Chat) *Chat {
	if c == nil {
		return nil
	}
	return &Chat{
		ID:        c.ID,
		Kind:      string(c.Kind),
		Name:      c.Name,
		ImageURL:  c.ImageURL,
		ProjectID: c.ProjectID,
		DirectKey: c.DirectKey,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// EtoD converts a schema chat back to the domain representation.
func (c *Chat) EtoD() *chat.Chat {
	if c == nil {
		return nil
	}
	return &chat.Chat{
		ID:        c.ID,
		Kind:      chat.Kind(c.Kind),
		Name:      c.Name,
		ImageURL:  c.ImageURL,
		ProjectID: c.ProjectID,
		DirectKey: c.DirectKey,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

// TableName specifies the table name for ChatMember.
func (ChatMember) TableName() string {
	return "chat_members"
}

// ChatMember is the persisted membership row.
type ChatMember struct {
	ChatID     string `gorm:"primaryKey;size:64"`
	UserID     string `gorm:"primaryKey;size:128"`
	Role       string `gorm:"size:16;not null"`
	IsFavorite bool   `gorm:"not null;default:false"`
	LastRead   time.Time
	JoinedAt   time.Time
}

// NewSchemaChatMember converts a domain member into a schema instance.
func NewSchemaChatMember(m *chat.Member) *ChatMember {
	if m == nil {
		return nil
	}
	return &ChatMember{
		ChatID:     m.ChatID,
		UserID:     m.UserID,
		Role:       string(m.Role),
		IsFavorite: m.IsFavorite,
		LastRead:   m.LastRead,
		JoinedAt:   m.JoinedAt,
	}
}

// EtoD converts a schema member back to the domain representation. A role
// the service does not know is read as MEMBER so it never grants rights.
func (m *ChatMember) EtoD() *chat.Member {
	if m == nil {
		return nil
	}
	role := permission.ChatRole(m.Role)
	if !permission.IsValidChatRole(role) {
		role = permission.ChatRoleMember
	}
	return &chat.Member{
		ChatID:     m.ChatID,
		UserID:     m.UserID,
		Role:       role,
		IsFavorite: m.IsFavorite,
		LastRead:   m.LastRead.UTC(),
		JoinedAt:   m.JoinedAt.UTC(),
	}
}
