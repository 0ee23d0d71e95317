package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/utils/idgen"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// Outcome tells how a get-or-create call was satisfied.
type Outcome string

const (
	OutcomeExisting Outcome = "existing"
	OutcomeCreated  Outcome = "created"
	// OutcomeRecovered means a concurrent caller created the chat first and its row was returned.
	OutcomeRecovered Outcome = "recovered"
)

// Service describes chat directory and membership operations.
type Service interface {
	GetOrCreateDirect(ctx context.Context, actor domain.Principal, otherUserID string) (*Chat, Outcome, error)
	GetOrCreateProject(ctx context.Context, actor domain.Principal, projectID string) (*Chat, Outcome, error)
	CreateGroup(ctx context.Context, actor domain.Principal, input CreateGroupInput) (*Chat, error)
	UpdateGroup(ctx context.Context, actor domain.Principal, chatID string, patch GroupPatch) (*Chat, error)
	DeleteGroup(ctx context.Context, actor domain.Principal, chatID string) error
	ToggleFavorite(ctx context.Context, actor domain.Principal, chatID string) (*Member, error)
	GetInfo(ctx context.Context, actor domain.Principal, chatID string) (*Info, error)
	ListForUser(ctx context.Context, actor domain.Principal) ([]*Overview, error)
	RequireMember(ctx context.Context, chatID, userID string) (*Member, error)
	Touch(ctx context.Context, chatID string, at time.Time) error
}

// Options bounds group sizes and input lengths.
type Options struct {
	GroupMemberLimit int
	Now              func() time.Time
}

type service struct {
	chats    Repository
	members  MemberRepository
	messages MessagePurger
	tx       domain.Transactor
	opts     Options
	log      zerolog.Logger
}

const (
	maxNameLength = 120
	maxIDLength   = 128
)

// NewService wires the chat service with its repositories.
func NewService(
	chats Repository,
	members MemberRepository,
	messages MessagePurger,
	tx domain.Transactor,
	opts Options,
	log zerolog.Logger,
) Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GroupMemberLimit <= 0 {
		opts.GroupMemberLimit = 500
	}
	return &service{
		chats:    chats,
		members:  members,
		messages: messages,
		tx:       tx,
		opts:     opts,
		log:      log.With().Str("component", "chat-service").Logger(),
	}
}

func (s *service) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *service) GetOrCreateDirect(ctx context.Context, actor domain.Principal, otherUserID string) (*Chat, Outcome, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, "", err
	}

	other := strings.TrimSpace(otherUserID)
	if err := validateUserID(ctx, other); err != nil {
		return nil, "", err
	}
	if other == actor.ID {
		return nil, "", validationError(ctx, "a direct chat needs two distinct users", "chat-direct-self")
	}

	key := DirectKey(actor.ID, other)
	lookup := func(ctx context.Context) (*Chat, error) { return s.chats.FindByDirectKey(ctx, key) }

	build := func(now time.Time) (*Chat, []*Member) {
		chat := &Chat{
			ID:        idgen.NewAt(idgen.PrefixChat, now),
			Kind:      KindDirect,
			DirectKey: &key,
			CreatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return chat, []*Member{
			newMember(chat.ID, actor.ID, permission.ChatRoleMember, now),
			newMember(chat.ID, other, permission.ChatRoleMember, now),
		}
	}

	return s.getOrCreate(ctx, actor.ID, KindDirect, lookup, build)
}

func (s *service) GetOrCreateProject(ctx context.Context, actor domain.Principal, projectID string) (*Chat, Outcome, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, "", err
	}

	project := strings.TrimSpace(projectID)
	if project == "" || len(project) > maxIDLength {
		return nil, "", validationError(ctx, "project id is required", "chat-project-id-invalid")
	}

	lookup := func(ctx context.Context) (*Chat, error) { return s.chats.FindByProject(ctx, project) }

	build := func(now time.Time) (*Chat, []*Member) {
		chat := &Chat{
			ID:        idgen.NewAt(idgen.PrefixChat, now),
			Kind:      KindProject,
			ProjectID: &project,
			CreatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return chat, []*Member{newMember(chat.ID, actor.ID, permission.ChatRoleMember, now)}
	}

	return s.getOrCreate(ctx, actor.ID, KindProject, lookup, build)
}

// getOrCreate resolves creation races through the store's unique constraints: the
// losing insert fails with a conflict and the winner's row is read back.
func (s *service) getOrCreate(
	ctx context.Context,
	callerID string,
	kind Kind,
	lookup func(ctx context.Context) (*Chat, error),
	build func(now time.Time) (*Chat, []*Member),
) (*Chat, Outcome, error) {
	existing, err := lookup(ctx)
	if err == nil {
		if err := s.ensureMember(ctx, existing.ID, callerID); err != nil {
			return nil, "", err
		}
		return existing, OutcomeExisting, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "lookup chat")
	}

	chat, members := build(s.now())
	err = s.chats.Create(ctx, chat, members)
	if err == nil {
		s.log.Info().
			Str("chat_id", chat.ID).
			Str("kind", string(kind)).
			Str("created_by", callerID).
			Msg("chat created")
		return chat, OutcomeCreated, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
		return nil, "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create chat")
	}

	winner, err := lookup(ctx)
	if err != nil {
		return nil, "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "reload chat after conflict")
	}
	s.log.Debug().
		Str("chat_id", winner.ID).
		Str("kind", string(kind)).
		Msg("concurrent chat creation resolved to existing row")

	if err := s.ensureMember(ctx, winner.ID, callerID); err != nil {
		return nil, "", err
	}
	return winner, OutcomeRecovered, nil
}

func (s *service) ensureMember(ctx context.Context, chatID, userID string) error {
	inserted, err := s.members.Add(ctx, newMember(chatID, userID, permission.ChatRoleMember, s.now()))
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "add caller to chat")
	}
	if inserted {
		s.log.Info().Str("chat_id", chatID).Str("user_id", userID).Msg("restored missing membership")
	}
	return nil
}

func (s *service) CreateGroup(ctx context.Context, actor domain.Principal, input CreateGroupInput) (*Chat, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError(ctx, "group name is required", "chat-group-name-empty")
	}
	if len(name) > maxNameLength {
		return nil, validationError(ctx, "group name is too long", "chat-group-name-long")
	}

	memberIDs, err := normalizeIDs(ctx, input.MemberIDs, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(memberIDs)+1 > s.opts.GroupMemberLimit {
		return nil, validationError(ctx, "too many group members", "chat-group-too-many")
	}

	now := s.now()
	chat := &Chat{
		ID:        idgen.NewAt(idgen.PrefixChat, now),
		Kind:      KindGroup,
		Name:      &name,
		ImageURL:  trimmedOrNil(input.ImageURL),
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	members := make([]*Member, 0, len(memberIDs)+1)
	members = append(members, newMember(chat.ID, actor.ID, permission.ChatRoleAdmin, now))
	for _, id := range memberIDs {
		members = append(members, newMember(chat.ID, id, permission.ChatRoleMember, now))
	}

	if err := s.chats.Create(ctx, chat, members); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create group chat")
	}

	s.log.Info().
		Str("chat_id", chat.ID).
		Str("created_by", actor.ID).
		Int("members", len(members)).
		Msg("group chat created")
	return chat, nil
}

func (s *service) UpdateGroup(ctx context.Context, actor domain.Principal, chatID string, patch GroupPatch) (*Chat, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	chat, err := s.loadGroup(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeEdit(ctx, actor, chat.ID); err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return chat, nil
	}

	var name *string
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, validationError(ctx, "group name is required", "chat-group-name-empty")
		}
		if len(trimmed) > maxNameLength {
			return nil, validationError(ctx, "group name is too long", "chat-group-name-long")
		}
		name = &trimmed
	}

	addIDs, err := normalizeIDs(ctx, patch.AddMemberIDs, "")
	if err != nil {
		return nil, err
	}
	removeIDs, err := normalizeIDs(ctx, patch.RemoveMemberIDs, "")
	if err != nil {
		return nil, err
	}

	current, err := s.members.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list group members")
	}
	byUser := make(map[string]*Member, len(current))
	for _, m := range current {
		byUser[m.UserID] = m
	}

	// Admin removal is rejected before anything is written.
	for _, id := range removeIDs {
		if m, ok := byUser[id]; ok && m.Role == permission.ChatRoleAdmin {
			return nil, platformerrors.NewErrorWithContext(
				ctx,
				platformerrors.LayerDomain,
				platformerrors.ErrorTypeValidation,
				"chat admins cannot be removed from the group",
				nil,
				"chat-remove-admin",
				map[string]any{"chat_id": chat.ID, "user_id": id},
			)
		}
	}

	toAdd := make([]string, 0, len(addIDs))
	for _, id := range addIDs {
		if _, ok := byUser[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	toRemove := make([]string, 0, len(removeIDs))
	for _, id := range removeIDs {
		if _, ok := byUser[id]; ok {
			toRemove = append(toRemove, id)
		}
	}
	if len(current)+len(toAdd)-len(toRemove) > s.opts.GroupMemberLimit {
		return nil, validationError(ctx, "too many group members", "chat-group-too-many")
	}

	if name != nil {
		chat.Name = name
	}
	if patch.ImageURL != nil {
		chat.ImageURL = trimmedOrNil(patch.ImageURL)
	}

	now := s.now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if name != nil || patch.ImageURL != nil {
			if err := s.chats.Update(ctx, chat); err != nil {
				return err
			}
		}
		for _, id := range toAdd {
			if _, err := s.members.Add(ctx, newMember(chat.ID, id, permission.ChatRoleMember, now)); err != nil {
				return err
			}
		}
		if len(toRemove) > 0 {
			if err := s.members.Remove(ctx, chat.ID, toRemove); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update group chat")
	}

	s.log.Info().
		Str("chat_id", chat.ID).
		Str("updated_by", actor.ID).
		Int("added", len(toAdd)).
		Int("removed", len(toRemove)).
		Msg("group chat updated")
	return chat, nil
}

func (s *service) authorizeEdit(ctx context.Context, actor domain.Principal, chatID string) error {
	role := permission.ChatRoleNone
	member, err := s.members.Find(ctx, chatID, actor.ID)
	switch {
	case err == nil:
		role = member.Role
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
	default:
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load caller membership")
	}

	if permission.CanEditGroup(actor.SystemRole, role) {
		return nil
	}
	if role == permission.ChatRoleNone {
		return notAMemberError(ctx, chatID)
	}
	return platformerrors.NewError(
		ctx,
		platformerrors.LayerDomain,
		platformerrors.ErrorTypeForbidden,
		"only group admins and managers can edit this group",
		nil,
		"chat-edit-forbidden",
	)
}

func (s *service) DeleteGroup(ctx context.Context, actor domain.Principal, chatID string) error {
	if err := requireActor(ctx, actor); err != nil {
		return err
	}

	chat, err := s.loadGroup(ctx, chatID)
	if err != nil {
		return err
	}

	if !permission.CanDeleteGroup(actor.SystemRole) {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeForbidden,
			"only administrators can delete groups",
			nil,
			"chat-delete-forbidden",
		)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.messages.DeleteByChat(ctx, chat.ID); err != nil {
			return err
		}
		if err := s.members.DeleteByChat(ctx, chat.ID); err != nil {
			return err
		}
		return s.chats.Delete(ctx, chat.ID)
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "delete group chat")
	}

	s.log.Info().Str("chat_id", chat.ID).Str("deleted_by", actor.ID).Msg("group chat deleted")
	return nil
}

func (s *service) ToggleFavorite(ctx context.Context, actor domain.Principal, chatID string) (*Member, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	member, err := s.members.ToggleFavorite(ctx, chatID, actor.ID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, notAMemberError(ctx, chatID)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "toggle favorite")
	}
	return member, nil
}

func (s *service) GetInfo(ctx context.Context, actor domain.Principal, chatID string) (*Info, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	self, err := s.RequireMember(ctx, chatID, actor.ID)
	if err != nil {
		return nil, err
	}

	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat")
	}

	members, err := s.members.ListByChat(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list chat members")
	}

	return &Info{Chat: chat, Members: members, Self: self}, nil
}

func (s *service) ListForUser(ctx context.Context, actor domain.Principal) ([]*Overview, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	overviews, err := s.chats.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list chats")
	}
	return overviews, nil
}

// RequireMember returns the caller's membership, NOT_FOUND when the chat does not
// exist, or NOT_A_MEMBER when it exists without them.
func (s *service) RequireMember(ctx context.Context, chatID, userID string) (*Member, error) {
	member, err := s.members.Find(ctx, chatID, userID)
	if err == nil {
		return member, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load membership")
	}

	if _, err := s.chats.FindByID(ctx, chatID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat")
	}
	return nil, notAMemberError(ctx, chatID)
}

func (s *service) Touch(ctx context.Context, chatID string, at time.Time) error {
	if err := s.chats.Touch(ctx, chatID, at); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "touch chat")
	}
	return nil
}

func (s *service) loadGroup(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat")
	}
	if chat.Kind != KindGroup {
		return nil, validationError(ctx, "operation is only available for group chats", "chat-not-group")
	}
	return chat, nil
}

func newMember(chatID, userID string, role permission.ChatRole, now time.Time) *Member {
	return &Member{
		ChatID:   chatID,
		UserID:   userID,
		Role:     role,
		LastRead: now,
		JoinedAt: now,
	}
}

// normalizeIDs trims, de-duplicates and validates user IDs, dropping exclude.
func normalizeIDs(ctx context.Context, ids []string, exclude string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || id == exclude {
			continue
		}
		if err := validateUserID(ctx, id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func validateUserID(ctx context.Context, id string) error {
	if id == "" || len(id) > maxIDLength {
		return validationError(ctx, "invalid user id", "chat-user-id-invalid")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func requireActor(ctx context.Context, actor domain.Principal) error {
	if strings.TrimSpace(actor.ID) == "" {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeUnauthorized,
			"authentication required",
			nil,
			"chat-unauthenticated",
		)
	}
	return nil
}

func validationError(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, message, nil, code)
}

func notAMemberError(ctx context.Context, chatID string) error {
	return platformerrors.NewErrorWithContext(
		ctx,
		platformerrors.LayerDomain,
		platformerrors.ErrorTypeNotAMember,
		"you are not a member of this chat",
		nil,
		"chat-not-a-member",
		map[string]any{"chat_id": chatID},
	)
}
