package dbschema

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/message"
)

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// AttachmentDescriptor is the JSON shape of one stored attachment.
type AttachmentDescriptor struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Message is the persisted chat message.
type Message struct {
	ID          string                                   `gorm:"primaryKey;size:64"`
	ChatID      string                                   `gorm:"size:64;not null"`
	AuthorID    string                                   `gorm:"size:128;not null"`
	Content     string                                   `gorm:"type:text;not null"`
	Attachments datatypes.JSONSlice[AttachmentDescriptor] `gorm:"type:jsonb;not null"`
	Mentions    pq.StringArray                           `gorm:"type:text[];not null"`
	ReplyToID   *string                                  `gorm:"size:64"`
	IsEdited    bool                                     `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
	DeletedAt   *time.Time
}

// NewSchemaMessage converts a domain message into a schema instance.
func NewSchemaMessage(m *message.Message) *Message {
	if m == nil {
		return nil
	}
	attachments := make(datatypes.JSONSlice[AttachmentDescriptor], 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, AttachmentDescriptor{URL: a.URL, Name: a.Name, Size: a.Size, Type: a.Type})
	}
	mentions := pq.StringArray(m.Mentions)
	if mentions == nil {
		mentions = pq.StringArray{}
	}
	return &Message{
		ID:          m.ID,
		ChatID:      m.ChatID,
		AuthorID:    m.AuthorID,
		Content:     m.Content,
		Attachments: attachments,
		Mentions:    mentions,
		ReplyToID:   m.ReplyToID,
		IsEdited:    m.IsEdited,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		DeletedAt:   m.DeletedAt,
	}
}

// EtoD converts a schema message back to the domain representation.
func (m *Message) EtoD() *message.Message {
	if m == nil {
		return nil
	}
	attachments := make([]attachment.Descriptor, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, attachment.Descriptor{URL: a.URL, Name: a.Name, Size: a.Size, Type: a.Type})
	}
	var deletedAt *time.Time
	if m.DeletedAt != nil {
		at := m.DeletedAt.UTC()
		deletedAt = &at
	}
	return &message.Message{
		ID:          m.ID,
		ChatID:      m.ChatID,
		AuthorID:    m.AuthorID,
		Content:     m.Content,
		Attachments: attachments,
		Mentions:    append([]string{}, m.Mentions...),
		ReplyToID:   m.ReplyToID,
		IsEdited:    m.IsEdited,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		DeletedAt:   deletedAt,
	}
}
