package synchandler

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/poll"
	"github.com/worknest/messaging-api/internal/domain/presence"
	"github.com/worknest/messaging-api/internal/infrastructure/metrics"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/messagehandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses/messageres"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// SyncHandler serves typing signals and poll snapshots.
type SyncHandler struct {
	typing   presence.Service
	poll     poll.Service
	messages *messagehandler.MessageHandler
	log      zerolog.Logger
}

func NewSyncHandler(typing presence.Service, snapshots poll.Service, messages *messagehandler.MessageHandler, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		typing:   typing,
		poll:     snapshots,
		messages: messages,
		log:      log.With().Str("component", "sync-handler").Logger(),
	}
}

func (h *SyncHandler) SetTyping(ctx context.Context, actor domain.Principal, chatID string, req messagereq.TypingRequest) error {
	isTyping := req.IsTyping != nil && *req.IsTyping
	if err := h.typing.SetTyping(ctx, actor, chatID, isTyping); err != nil {
		return err
	}
	metrics.RecordTyping(isTyping)
	return nil
}

func (h *SyncHandler) TypingUsers(ctx context.Context, actor domain.Principal, chatID string) (*messageres.TypingResponse, error) {
	typists, err := h.typing.TypingUsers(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	return &messageres.TypingResponse{ChatID: chatID, Users: messageres.NewTypistResponses(typists)}, nil
}

func (h *SyncHandler) Snapshot(ctx context.Context, actor domain.Principal, chatID string, query messagereq.SyncQuery) (*messageres.SyncResponse, error) {
	after, err := ParsePosition(ctx, query.Since, query.After)
	if err != nil {
		return nil, err
	}

	snap, err := h.poll.Snapshot(ctx, actor, chatID, after, query.Limit)
	if err != nil {
		return nil, err
	}
	rendered, err := h.messages.Render(ctx, chatID, snap.Messages)
	if err != nil {
		return nil, err
	}
	metrics.SyncPolls.Inc()

	return &messageres.SyncResponse{
		ChatID:     snap.ChatID,
		Messages:   rendered,
		Typing:     messageres.NewTypistResponses(snap.Typing),
		Unread:     snap.Unread,
		Cursor:     snap.Cursor.UpdatedAt,
		CursorID:   snap.Cursor.ID,
		ServerTime: snap.ServerTime,
		HasMore:    snap.HasMore,
	}, nil
}

// ParsePosition reads the (since, after) cursor pair a client echoes back.
func ParsePosition(ctx context.Context, rawSince, rawAfter string) (message.SyncPosition, error) {
	since, err := ParseSince(ctx, rawSince)
	if err != nil {
		return message.SyncPosition{}, err
	}
	after := strings.TrimSpace(rawAfter)
	if after != "" && since.IsZero() {
		return message.SyncPosition{}, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"after requires since", nil, "sync-after-without-since")
	}
	return message.SyncPosition{UpdatedAt: since, ID: after}, nil
}

// ParseSince reads an RFC 3339 cursor. An empty value means the beginning of time.
func ParseSince(ctx context.Context, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"since must be an RFC 3339 timestamp", err, "sync-bad-cursor")
	}
	return since.UTC(), nil
}
