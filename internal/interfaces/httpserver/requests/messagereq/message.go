package messagereq

import (
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/message"
)

type AttachmentRequest struct {
	URL  string `json:"url" binding:"required,max=2048"`
	Name string `json:"name" binding:"required,max=255"`
	Size int64  `json:"size" binding:"gte=0"`
	Type string `json:"type" binding:"required,max=255"`
}

// SendMessageRequest needs content, attachments or both; the message service
// enforces that rule.
type SendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []AttachmentRequest `json:"attachments" binding:"omitempty,dive"`
	ReplyToID   *string             `json:"replyToId" binding:"omitempty,max=64"`
}

func (r SendMessageRequest) ToInput() message.SendInput {
	descriptors := make([]attachment.Descriptor, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		descriptors = append(descriptors, attachment.Descriptor{URL: a.URL, Name: a.Name, Size: a.Size, Type: a.Type})
	}
	return message.SendInput{Content: r.Content, Attachments: descriptors, ReplyToID: r.ReplyToID}
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type TypingRequest struct {
	IsTyping *bool `json:"isTyping" binding:"required"`
}

type ListMessagesQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,gte=1"`
	Before string `form:"before" binding:"omitempty,max=64"`
}

func (q ListMessagesQuery) ToPage() message.Page {
	page := message.Page{Limit: q.Limit}
	if q.Before != "" {
		before := q.Before
		page.BeforeID = &before
	}
	return page
}

type SearchQuery struct {
	Q string `form:"q"`
}

// SyncQuery carries the poll cursor. Since is RFC 3339 with optional
// fractional seconds; empty means from the beginning. After is the cursorId
// of the previous response and is only meaningful together with Since.
type SyncQuery struct {
	Since string `form:"since"`
	After string `form:"after"`
	Limit int    `form:"limit" binding:"omitempty,gte=1"`
}
