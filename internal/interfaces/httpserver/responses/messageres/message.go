package messageres

import (
	"time"

	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/presence"
	"github.com/worknest/messaging-api/internal/domain/user"
)

// UserSummary is the public face of a user.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// NewUserSummary returns nil when u is nil.
func NewUserSummary(u *user.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

func NewAttachment(d attachment.Descriptor) Attachment {
	return Attachment{URL: d.URL, Name: d.Name, Size: d.Size, Type: d.Type}
}

// ReplyPreview is a short view of the message being replied to.
type ReplyPreview struct {
	ID        string       `json:"id"`
	AuthorID  string       `json:"authorId"`
	Author    *UserSummary `json:"author,omitempty"`
	Content   string       `json:"content"`
	IsDeleted bool         `json:"isDeleted"`
}

type MessageResponse struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chatId"`
	AuthorID    string        `json:"authorId"`
	Author      *UserSummary  `json:"author,omitempty"`
	Content     string        `json:"content"`
	Attachments []Attachment  `json:"attachments"`
	Mentions    []string      `json:"mentions"`
	ReplyToID   *string       `json:"replyToId,omitempty"`
	ReplyTo     *ReplyPreview `json:"replyTo,omitempty"`
	IsEdited    bool          `json:"isEdited"`
	IsDeleted   bool          `json:"isDeleted"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	DeletedAt   *time.Time    `json:"deletedAt,omitempty"`
}

// MessageListResponse is one page of history, oldest first. NextBefore feeds
// the before parameter of the following page.
type MessageListResponse struct {
	Data       []MessageResponse `json:"data"`
	HasMore    bool              `json:"hasMore"`
	NextBefore *string           `json:"nextBefore,omitempty"`
}

type SearchResponse struct {
	Query string            `json:"query"`
	Data  []MessageResponse `json:"data"`
}

type ChatAttachmentResponse struct {
	MessageID string       `json:"messageId"`
	AuthorID  string       `json:"authorId"`
	Author    *UserSummary `json:"author,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Attachment
}

type ChatAttachmentListResponse struct {
	Data []ChatAttachmentResponse `json:"data"`
}

type TypistResponse struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	LastSignal  time.Time `json:"lastSignal"`
}

type TypingResponse struct {
	ChatID string           `json:"chatId"`
	Users  []TypistResponse `json:"users"`
}

type ReadResponse struct {
	ChatID   string    `json:"chatId"`
	LastRead time.Time `json:"lastRead"`
	Unread   int64     `json:"unread"`
}

type UnreadCountResponse struct {
	ChatID string `json:"chatId"`
	Unread int64  `json:"unread"`
}

type SyncResponse struct {
	ChatID     string            `json:"chatId"`
	Messages   []MessageResponse `json:"messages"`
	Typing     []TypistResponse  `json:"typing"`
	Unread     int64             `json:"unread"`
	Cursor     time.Time         `json:"cursor"`
	CursorID   string            `json:"cursorId,omitempty"`
	ServerTime time.Time         `json:"serverTime"`
	HasMore    bool              `json:"hasMore"`
}

// Directory resolves users and reply targets referenced by messages.
type Directory struct {
	Users   map[string]*user.User
	Replies map[string]*message.Message
}

// NewMessageResponse renders msg. Missing directory entries are left out.
func NewMessageResponse(msg *message.Message, dir Directory) MessageResponse {
	attachments := make([]Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, NewAttachment(a))
	}
	mentions := msg.Mentions
	if mentions == nil {
		mentions = []string{}
	}

	resp := MessageResponse{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		AuthorID:    msg.AuthorID,
		Author:      NewUserSummary(dir.Users[msg.AuthorID]),
		Content:     msg.Content,
		Attachments: attachments,
		Mentions:    mentions,
		ReplyToID:   msg.ReplyToID,
		IsEdited:    msg.IsEdited,
		IsDeleted:   msg.IsDeleted(),
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
		DeletedAt:   msg.DeletedAt,
	}
	if msg.ReplyToID != nil {
		if target, ok := dir.Replies[*msg.ReplyToID]; ok {
			resp.ReplyTo = &ReplyPreview{
				ID:        target.ID,
				AuthorID:  target.AuthorID,
				Author:    NewUserSummary(dir.Users[target.AuthorID]),
				Content:   preview(target.Content),
				IsDeleted: target.IsDeleted(),
			}
		}
	}
	return resp
}

func NewMessageResponses(msgs []*message.Message, dir Directory) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, NewMessageResponse(msg, dir))
	}
	return out
}

func NewTypistResponses(typists []presence.Typist) []TypistResponse {
	out := make([]TypistResponse, 0, len(typists))
	for _, t := range typists {
		out = append(out, TypistResponse{UserID: t.UserID, DisplayName: t.DisplayName, LastSignal: t.LastSignal})
	}
	return out
}

const previewRunes = 140

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}
