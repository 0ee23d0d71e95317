// Package user keeps a local directory of the people seen through the identity provider.
package user

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// User is the directory entry for one identity.
type User struct {
	ID          string
	DisplayName string
	Email       string
	AvatarURL   string
	SystemRole  permission.SystemRole
	UpdatedAt   time.Time
}

func (u *User) sameProfile(other *User) bool {
	return u.ID == other.ID &&
		u.DisplayName == other.DisplayName &&
		u.Email == other.Email &&
		u.AvatarURL == other.AvatarURL &&
		u.SystemRole == other.SystemRole
}

// Repository persists directory entries.
type Repository interface {
	Upsert(ctx context.Context, u *User) error
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
}

// Service syncs principals into the directory and resolves user IDs to profiles.
type Service interface {
	Sync(ctx context.Context, principal domain.Principal) (*User, error)
	Lookup(ctx context.Context, ids []string) (map[string]*User, error)
}

type service struct {
	repo  Repository
	cache *lru.Cache
	now   func() time.Time
	log   zerolog.Logger
}

// NewService builds the directory with an LRU of cacheSize profiles.
func NewService(repo Repository, cacheSize int, log zerolog.Logger) (Service, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &service{
		repo:  repo,
		cache: cache,
		now:   time.Now,
		log:   log.With().Str("component", "user-service").Logger(),
	}, nil
}

func (s *service) Sync(ctx context.Context, principal domain.Principal) (*User, error) {
	if principal.ID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "user-unauthenticated")
	}

	candidate := &User{
		ID:          principal.ID,
		DisplayName: principal.DisplayName(),
		Email:       principal.Email,
		AvatarURL:   principal.Picture,
		SystemRole:  principal.SystemRole,
	}

	if cached, ok := s.cache.Get(principal.ID); ok {
		if existing := cached.(*User); existing.sameProfile(candidate) {
			return existing, nil
		}
	}

	candidate.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, candidate); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "sync user profile")
	}
	s.cache.Add(candidate.ID, candidate)

	s.log.Debug().Str("user_id", candidate.ID).Str("system_role", string(candidate.SystemRole)).Msg("user profile synced")
	return candidate, nil
}

// Lookup never fails on unknown IDs; they resolve to a profile named after the ID.
func (s *service) Lookup(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if _, done := out[id]; done || id == "" {
			continue
		}
		if cached, ok := s.cache.Get(id); ok {
			out[id] = cached.(*User)
			continue
		}
		out[id] = nil
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		found, err := s.repo.FindByIDs(ctx, missing)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "lookup users")
		}
		for _, u := range found {
			out[u.ID] = u
			s.cache.Add(u.ID, u)
		}
	}

	for id, u := range out {
		if u == nil {
			out[id] = &User{ID: id, DisplayName: id, SystemRole: permission.SystemRoleEmployee}
		}
	}
	return out, nil
}
