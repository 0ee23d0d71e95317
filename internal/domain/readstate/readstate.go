// Package readstate derives unread counts from per-member read cursors.
package readstate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// Repository reads and moves read cursors. Counts only include messages newer
// than the cursor that were written by someone else; tombstones still count.
type Repository interface {
	// MarkRead moves every matching cursor forward to at, never backwards,
	// and returns the number of membership rows matched.
	MarkRead(ctx context.Context, chatID, userID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, chatID, userID string) (int64, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

// Summary is the global unread indicator.
type Summary struct {
	HasUnread       bool
	ChatsWithUnread int
	Counts          map[string]int64
}

// Service exposes read tracking.
type Service interface {
	MarkAsRead(ctx context.Context, actor domain.Principal, chatID string) (time.Time, error)
	UnreadCount(ctx context.Context, actor domain.Principal, chatID string) (int64, error)
	Summary(ctx context.Context, actor domain.Principal) (*Summary, error)
}

type service struct {
	repo Repository
	gate chat.Gate
	now  func() time.Time
	log  zerolog.Logger
}

// NewService builds the read tracker. now defaults to time.Now.
func NewService(repo Repository, gate chat.Gate, now func() time.Time, log zerolog.Logger) Service {
	if now == nil {
		now = time.Now
	}
	return &service{
		repo: repo,
		gate: gate,
		now:  now,
		log:  log.With().Str("component", "readstate-service").Logger(),
	}
}

func (s *service) MarkAsRead(ctx context.Context, actor domain.Principal, chatID string) (time.Time, error) {
	if err := requireActor(ctx, actor); err != nil {
		return time.Time{}, err
	}

	at := s.now().UTC()
	rows, err := s.repo.MarkRead(ctx, chatID, actor.ID, at)
	if err != nil {
		return time.Time{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "mark chat as read")
	}
	if rows == 0 {
		// Let the gate tell a missing chat apart from a missing membership.
		if _, err := s.gate.RequireMember(ctx, chatID, actor.ID); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotAMember,
			"you are not a member of this chat", nil, "readstate-not-a-member")
	}
	if rows > 1 {
		s.log.Warn().Str("chat_id", chatID).Str("user_id", actor.ID).Int64("rows", rows).Msg("duplicate membership rows")
	}
	return at, nil
}

func (s *service) UnreadCount(ctx context.Context, actor domain.Principal, chatID string) (int64, error) {
	if err := requireActor(ctx, actor); err != nil {
		return 0, err
	}
	if _, err := s.gate.RequireMember(ctx, chatID, actor.ID); err != nil {
		return 0, err
	}

	count, err := s.repo.UnreadCount(ctx, chatID, actor.ID)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "count unread messages")
	}
	return count, nil
}

func (s *service) Summary(ctx context.Context, actor domain.Principal) (*Summary, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	counts, err := s.repo.UnreadCounts(ctx, actor.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "count unread chats")
	}

	summary := &Summary{Counts: counts}
	for _, n := range counts {
		if n > 0 {
			summary.ChatsWithUnread++
		}
	}
	summary.HasUnread = summary.ChatsWithUnread > 0
	return summary, nil
}

func requireActor(ctx context.Context, actor domain.Principal) error {
	if strings.TrimSpace(actor.ID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "readstate-unauthenticated")
	}
	return nil
}
