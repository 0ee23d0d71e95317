// Package presence tracks short-lived typing signals per chat.
package presence

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// DefaultTTL is how long a typing signal stays visible without a refresh.
const DefaultTTL = 5 * time.Second

// Typist is a user currently composing in a chat.
type Typist struct {
	UserID      string
	DisplayName string
	LastSignal  time.Time
}

// Store holds typing signals. Active returns the entries of chatID whose last
// signal is within ttl of now and removes the expired ones it scanned.
type Store interface {
	Set(ctx context.Context, chatID string, typist Typist) error
	Clear(ctx context.Context, chatID, userID string) error
	Active(ctx context.Context, chatID string, now time.Time, ttl time.Duration) ([]Typist, error)
}

// Service records and reports typing signals. Store failures are logged and
// swallowed.
type Service interface {
	SetTyping(ctx context.Context, actor domain.Principal, chatID string, isTyping bool) error
	TypingUsers(ctx context.Context, actor domain.Principal, chatID string) ([]Typist, error)
}

// Options configures the tracker.
type Options struct {
	TTL time.Duration
	Now func() time.Time
	// OnStoreError is called for every swallowed store failure.
	OnStoreError func(op string, err error)
}

type service struct {
	store Store
	gate  chat.Gate
	opts  Options
	log   zerolog.Logger
}

// NewService builds the typing tracker around store.
func NewService(store Store, gate chat.Gate, opts Options, log zerolog.Logger) Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnStoreError == nil {
		opts.OnStoreError = func(string, error) {}
	}
	return &service{
		store: store,
		gate:  gate,
		opts:  opts,
		log:   log.With().Str("component", "presence-service").Logger(),
	}
}

func (s *service) SetTyping(ctx context.Context, actor domain.Principal, chatID string, isTyping bool) error {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return err
	}

	var err error
	op := "clear"
	if isTyping {
		op = "set"
		err = s.store.Set(ctx, chatID, Typist{
			UserID:      actor.ID,
			DisplayName: actor.DisplayName(),
			LastSignal:  s.opts.Now().UTC(),
		})
	} else {
		err = s.store.Clear(ctx, chatID, actor.ID)
	}
	if err != nil {
		s.swallow(op, chatID, err)
	}
	return nil
}

func (s *service) TypingUsers(ctx context.Context, actor domain.Principal, chatID string) ([]Typist, error) {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return nil, err
	}

	active, err := s.store.Active(ctx, chatID, s.opts.Now().UTC(), s.opts.TTL)
	if err != nil {
		s.swallow("active", chatID, err)
		return []Typist{}, nil
	}

	out := make([]Typist, 0, len(active))
	for _, t := range active {
		if t.UserID == actor.ID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *service) requireMember(ctx context.Context, actor domain.Principal, chatID string) error {
	if strings.TrimSpace(actor.ID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "presence-unauthenticated")
	}
	_, err := s.gate.RequireMember(ctx, chatID, actor.ID)
	return err
}

func (s *service) swallow(op, chatID string, err error) {
	s.opts.OnStoreError(op, err)
	s.log.Warn().Err(err).Str("op", op).Str("chat_id", chatID).Msg("presence store failure ignored")
}

// Expired reports whether a signal taken at last is past ttl at now.
func Expired(last, now time.Time, ttl time.Duration) bool {
	return now.Sub(last) > ttl
}
