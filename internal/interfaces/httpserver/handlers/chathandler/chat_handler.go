package chathandler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/metrics"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/chatreq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/chatres"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/messageres"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// ChatHandler composes the chat directory with unread counts, last messages
// and user profiles.
type ChatHandler struct {
	chats    chat.Service
	messages message.Service
	reads    readstate.Service
	users    user.Service
	log      zerolog.Logger
}

func NewChatHandler(
	chats chat.Service,
	messages message.Service,
	reads readstate.Service,
	users user.Service,
	log zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chats:    chats,
		messages: messages,
		reads:    reads,
		users:    users,
		log:      log.With().Str("component", "chat-handler").Logger(),
	}
}

func (h *ChatHandler) GetOrCreateDirect(ctx context.Context, actor domain.Principal, req chatreq.DirectChatRequest) (*chatres.ResolvedChatResponse, error) {
	c, outcome, err := h.chats.GetOrCreateDirect(ctx, actor, req.UserID)
	if err != nil {
		return nil, err
	}
	return resolved(c, outcome), nil
}

func (h *ChatHandler) GetOrCreateProject(ctx context.Context, actor domain.Principal, req chatreq.ProjectChatRequest) (*chatres.ResolvedChatResponse, error) {
	c, outcome, err := h.chats.GetOrCreateProject(ctx, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}
	return resolved(c, outcome), nil
}

func resolved(c *chat.Chat, outcome chat.Outcome) *chatres.ResolvedChatResponse {
	metrics.RecordChatResolved(string(c.Kind), string(outcome))
	return &chatres.ResolvedChatResponse{
		ChatResponse: chatres.NewChatResponse(c),
		Created:      outcome == chat.OutcomeCreated,
	}
}

func (h *ChatHandler) CreateGroup(ctx context.Context, actor domain.Principal, req chatreq.CreateGroupRequest) (*chatres.ChatInfoResponse, error) {
	c, err := h.chats.CreateGroup(ctx, actor, req.ToInput())
	if err != nil {
		return nil, err
	}
	metrics.RecordChatResolved(string(c.Kind), string(chat.OutcomeCreated))
	return h.GetInfo(ctx, actor, c.ID)
}

func (h *ChatHandler) UpdateGroup(ctx context.Context, actor domain.Principal, chatID string, req chatreq.UpdateGroupRequest) (*chatres.ChatInfoResponse, error) {
	// A system administrator may edit a group without belonging to it, so the
	// response is built from the update result rather than GetInfo.
	c, err := h.chats.UpdateGroup(ctx, actor, chatID, req.ToPatch())
	if err != nil {
		return nil, err
	}
	info, err := h.chats.GetInfo(ctx, actor, c.ID)
	switch {
	case err == nil:
		return h.renderInfo(ctx, info)
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotAMember):
		return &chatres.ChatInfoResponse{ChatResponse: chatres.NewChatResponse(c), Members: []chatres.MemberResponse{}}, nil
	default:
		return nil, err
	}
}

func (h *ChatHandler) DeleteGroup(ctx context.Context, actor domain.Principal, chatID string) (*chatres.DeletedResponse, error) {
	if err := h.chats.DeleteGroup(ctx, actor, chatID); err != nil {
		return nil, err
	}
	metrics.ChatsDeleted.Inc()
	return &chatres.DeletedResponse{ID: chatID, Deleted: true}, nil
}

func (h *ChatHandler) ToggleFavorite(ctx context.Context, actor domain.Principal, chatID string) (*chatres.FavoriteResponse, error) {
	m, err := h.chats.ToggleFavorite(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	return &chatres.FavoriteResponse{ChatID: m.ChatID, IsFavorite: m.IsFavorite}, nil
}

func (h *ChatHandler) GetInfo(ctx context.Context, actor domain.Principal, chatID string) (*chatres.ChatInfoResponse, error) {
	info, err := h.chats.GetInfo(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	return h.renderInfo(ctx, info)
}

func (h *ChatHandler) renderInfo(ctx context.Context, info *chat.Info) (*chatres.ChatInfoResponse, error) {
	ids := make([]string, 0, len(info.Members))
	for _, m := range info.Members {
		ids = append(ids, m.UserID)
	}
	users, err := h.users.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	resp := chatres.NewChatInfoResponse(info, users)
	return &resp, nil
}

// ListChats returns the caller's chats with unread counts and last messages.
func (h *ChatHandler) ListChats(ctx context.Context, actor domain.Principal) (*chatres.ChatListResponse, error) {
	overviews, err := h.chats.ListForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(overviews) == 0 {
		return &chatres.ChatListResponse{Data: []chatres.ChatListItem{}}, nil
	}

	chatIDs := make([]string, 0, len(overviews))
	for _, o := range overviews {
		chatIDs = append(chatIDs, o.Chat.ID)
	}
	latest, err := h.messages.Latest(ctx, chatIDs)
	if err != nil {
		return nil, err
	}
	summary, err := h.reads.Summary(ctx, actor)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]string, 0, len(latest))
	for _, msg := range latest {
		authorIDs = append(authorIDs, msg.AuthorID)
	}
	users, err := h.users.Lookup(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	dir := messageres.Directory{Users: users}

	items := make([]chatres.ChatListItem, 0, len(overviews))
	for _, o := range overviews {
		item := chatres.ChatListItem{
			ChatResponse: chatres.NewChatResponse(o.Chat),
			Role:         string(o.Membership.Role),
			IsFavorite:   o.Membership.IsFavorite,
			LastRead:     o.Membership.LastRead,
			UnreadCount:  summary.Counts[o.Chat.ID],
		}
		if msg, ok := latest[o.Chat.ID]; ok {
			rendered := messageres.NewMessageResponse(msg, dir)
			item.LastMessage = &rendered
		}
		items = append(items, item)
	}
	return &chatres.ChatListResponse{Data: items}, nil
}

func (h *ChatHandler) UnreadSummary(ctx context.Context, actor domain.Principal) (*chatres.UnreadSummaryResponse, error) {
	summary, err := h.reads.Summary(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &chatres.UnreadSummaryResponse{HasUnread: summary.HasUnread, ChatsWithUnread: summary.ChatsWithUnread}, nil
}
