// Package poll assembles the snapshot a polling client asks for on every tick.
package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/presence"
	"github.com/worknest/messaging-api/internal/domain/readstate"
)

// Snapshot is everything that changed in a chat after a cursor. Cursor trails
// ServerTime by the configured lag, so messages near the head of the feed can
// be returned again on the next poll and clients must merge by ID.
type Snapshot struct {
	ChatID     string
	Messages   []*message.Message
	Typing     []presence.Typist
	Unread     int64
	Cursor     message.SyncPosition
	ServerTime time.Time
	HasMore    bool
}

// Service builds snapshots.
type Service interface {
	Snapshot(ctx context.Context, actor domain.Principal, chatID string, after message.SyncPosition, limit int) (*Snapshot, error)
}

// Options tunes snapshot paging.
type Options struct {
	// PageMax bounds the messages per snapshot.
	PageMax int
	// Lag holds the cursor this far behind the server clock. A write stamped
	// before a poll but committed after it is still delivered as long as its
	// transaction finishes within Lag.
	Lag time.Duration
	Now func() time.Time
}

type service struct {
	messages message.Service
	typing   presence.Service
	reads    readstate.Service
	opts     Options
	log      zerolog.Logger
}

func NewService(messages message.Service, typing presence.Service, reads readstate.Service, opts Options, log zerolog.Logger) Service {
	if opts.PageMax <= 0 {
		opts.PageMax = 500
	}
	if opts.Lag < 0 {
		opts.Lag = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		messages: messages,
		typing:   typing,
		reads:    reads,
		opts:     opts,
		log:      log.With().Str("component", "poll-service").Logger(),
	}
}

func (s *service) Snapshot(ctx context.Context, actor domain.Principal, chatID string, after message.SyncPosition, limit int) (*Snapshot, error) {
	if limit <= 0 || limit > s.opts.PageMax {
		limit = s.opts.PageMax
	}
	after.UpdatedAt = after.UpdatedAt.UTC()
	// Read before the queries so the horizon never passes a write that was
	// still in flight when they ran.
	serverTime := s.opts.Now().UTC()

	// The three reads are independent; each one checks membership itself.
	var (
		msgs   []*message.Message
		typing []presence.Typist
		unread int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		msgs, err = s.messages.Changes(gctx, actor, chatID, after, limit)
		return err
	})
	g.Go(func() (err error) {
		typing, err = s.typing.TypingUsers(gctx, actor, chatID)
		return err
	})
	g.Go(func() (err error) {
		unread, err = s.reads.UnreadCount(gctx, actor, chatID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hasMore := len(msgs) == limit
	cursor := nextCursor(after, msgs, hasMore, serverTime.Add(-s.opts.Lag))

	s.log.Debug().
		Str("chat_id", chatID).
		Str("user_id", actor.ID).
		Int("messages", len(msgs)).
		Int("typing", len(typing)).
		Time("cursor", cursor.UpdatedAt).
		Msg("poll snapshot built")

	return &Snapshot{
		ChatID:     chatID,
		Messages:   msgs,
		Typing:     typing,
		Unread:     unread,
		Cursor:     cursor,
		ServerTime: serverTime,
		HasMore:    hasMore,
	}, nil
}

// nextCursor never moves past the horizon, and on a full page never past the
// last row returned. It never moves backwards.
func nextCursor(after message.SyncPosition, msgs []*message.Message, full bool, horizon time.Time) message.SyncPosition {
	next := message.SyncPosition{UpdatedAt: horizon}
	if full && len(msgs) > 0 {
		if last := msgs[len(msgs)-1].Position(); last.Before(next) {
			next = last
		}
	}
	if next.Before(after) {
		return after
	}
	return next
}
