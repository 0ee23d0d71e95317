package messagehandler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/metrics"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/messageres"
)

// MessageHandler renders message operations with author profiles and reply
// previews.
type MessageHandler struct {
	messages message.Service
	reads    readstate.Service
	users    user.Service
	paging   Paging
	log      zerolog.Logger
}

// Paging mirrors the history page bounds applied by the message service.
type Paging struct {
	Default int
	Max     int
}

func (p Paging) effective(limit int) int {
	if limit <= 0 {
		limit = p.Default
	}
	if p.Max > 0 && limit > p.Max {
		limit = p.Max
	}
	return limit
}

func NewMessageHandler(messages message.Service, reads readstate.Service, users user.Service, paging Paging, log zerolog.Logger) *MessageHandler {
	if paging.Default <= 0 {
		paging.Default = 50
	}
	return &MessageHandler{
		messages: messages,
		reads:    reads,
		users:    users,
		paging:   paging,
		log:      log.With().Str("component", "message-handler").Logger(),
	}
}

func (h *MessageHandler) Send(ctx context.Context, actor domain.Principal, chatID string, req messagereq.SendMessageRequest) (*messageres.MessageResponse, error) {
	msg, err := h.messages.Send(ctx, actor, chatID, req.ToInput())
	if err != nil {
		return nil, err
	}
	metrics.RecordMessageOp("sent")
	return h.renderOne(ctx, msg)
}

func (h *MessageHandler) Edit(ctx context.Context, actor domain.Principal, messageID string, req messagereq.EditMessageRequest) (*messageres.MessageResponse, error) {
	msg, err := h.messages.Edit(ctx, actor, messageID, req.Content)
	if err != nil {
		return nil, err
	}
	metrics.RecordMessageOp("edited")
	return h.renderOne(ctx, msg)
}

func (h *MessageHandler) Delete(ctx context.Context, actor domain.Principal, messageID string) (*messageres.MessageResponse, error) {
	msg, err := h.messages.Delete(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	metrics.RecordMessageOp("deleted")
	return h.renderOne(ctx, msg)
}

func (h *MessageHandler) List(ctx context.Context, actor domain.Principal, chatID string, query messagereq.ListMessagesQuery) (*messageres.MessageListResponse, error) {
	page := query.ToPage()
	msgs, err := h.messages.List(ctx, actor, chatID, page)
	if err != nil {
		return nil, err
	}
	data, err := h.Render(ctx, chatID, msgs)
	if err != nil {
		return nil, err
	}

	resp := &messageres.MessageListResponse{Data: data}
	if len(msgs) > 0 && len(msgs) >= h.paging.effective(page.Limit) {
		oldest := msgs[0].ID
		resp.HasMore = true
		resp.NextBefore = &oldest
	}
	return resp, nil
}

func (h *MessageHandler) Search(ctx context.Context, actor domain.Principal, chatID, query string) (*messageres.SearchResponse, error) {
	msgs, err := h.messages.Search(ctx, actor, chatID, query)
	if err != nil {
		return nil, err
	}
	data, err := h.Render(ctx, chatID, msgs)
	if err != nil {
		return nil, err
	}
	return &messageres.SearchResponse{Query: query, Data: data}, nil
}

func (h *MessageHandler) Attachments(ctx context.Context, actor domain.Principal, chatID string) (*messageres.ChatAttachmentListResponse, error) {
	items, err := h.messages.Attachments(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.AuthorID)
	}
	users, err := h.users.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	data := make([]messageres.ChatAttachmentResponse, 0, len(items))
	for _, item := range items {
		data = append(data, messageres.ChatAttachmentResponse{
			MessageID:  item.MessageID,
			AuthorID:   item.AuthorID,
			Author:     messageres.NewUserSummary(users[item.AuthorID]),
			CreatedAt:  item.CreatedAt,
			Attachment: messageres.NewAttachment(item.Descriptor),
		})
	}
	return &messageres.ChatAttachmentListResponse{Data: data}, nil
}

func (h *MessageHandler) MarkRead(ctx context.Context, actor domain.Principal, chatID string) (*messageres.ReadResponse, error) {
	lastRead, err := h.reads.MarkAsRead(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	unread, err := h.reads.UnreadCount(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	return &messageres.ReadResponse{ChatID: chatID, LastRead: lastRead, Unread: unread}, nil
}

func (h *MessageHandler) UnreadCount(ctx context.Context, actor domain.Principal, chatID string) (*messageres.UnreadCountResponse, error) {
	unread, err := h.reads.UnreadCount(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	return &messageres.UnreadCountResponse{ChatID: chatID, Unread: unread}, nil
}

func (h *MessageHandler) renderOne(ctx context.Context, msg *message.Message) (*messageres.MessageResponse, error) {
	rendered, err := h.Render(ctx, msg.ChatID, []*message.Message{msg})
	if err != nil {
		return nil, err
	}
	return &rendered[0], nil
}

// Render resolves authors and reply targets of msgs, all from chatID.
func (h *MessageHandler) Render(ctx context.Context, chatID string, msgs []*message.Message) ([]messageres.MessageResponse, error) {
	replies, err := h.messages.ReplyTargets(ctx, chatID, msgs)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs)+len(replies))
	for _, msg := range msgs {
		ids = append(ids, msg.AuthorID)
	}
	for _, target := range replies {
		ids = append(ids, target.AuthorID)
	}
	users, err := h.users.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	return messageres.NewMessageResponses(msgs, messageres.Directory{Users: users, Replies: replies}), nil
}
