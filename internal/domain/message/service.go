package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/utils/idgen"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// Service is the message store.
type Service interface {
	Send(ctx context.Context, actor domain.Principal, chatID string, input SendInput) (*Message, error)
	Edit(ctx context.Context, actor domain.Principal, messageID, content string) (*Message, error)
	Delete(ctx context.Context, actor domain.Principal, messageID string) (*Message, error)
	List(ctx context.Context, actor domain.Principal, chatID string, page Page) ([]*Message, error)
	Search(ctx context.Context, actor domain.Principal, chatID, query string) ([]*Message, error)
	Attachments(ctx context.Context, actor domain.Principal, chatID string) ([]*ChatAttachment, error)
	Changes(ctx context.Context, actor domain.Principal, chatID string, after SyncPosition, limit int) ([]*Message, error)
	ReplyTargets(ctx context.Context, chatID string, msgs []*Message) (map[string]*Message, error)
	Latest(ctx context.Context, chatIDs []string) (map[string]*Message, error)
}

// Options holds paging and size limits.
type Options struct {
	PageSize              int
	PageMax               int
	MaxContentLength      int
	SearchLimit           int
	MaxQueryLength        int
	AttachmentListMax     int
	AttachmentsPerMessage int
	SyncMax               int
	Now                   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.PageMax <= 0 {
		o.PageMax = 200
	}
	if o.PageSize > o.PageMax {
		o.PageSize = o.PageMax
	}
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = 10000
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 50
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = 200
	}
	if o.AttachmentListMax <= 0 {
		o.AttachmentListMax = 500
	}
	if o.AttachmentsPerMessage <= 0 {
		o.AttachmentsPerMessage = 10
	}
	if o.SyncMax <= 0 {
		o.SyncMax = 500
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type service struct {
	repo     Repository
	members  Membership
	tx       domain.Transactor
	validate *validator.Validate
	opts     Options
	log      zerolog.Logger
}

// NewService builds the message service.
func NewService(repo Repository, members Membership, tx domain.Transactor, opts Options, log zerolog.Logger) Service {
	return &service{
		repo:     repo,
		members:  members,
		tx:       tx,
		validate: validator.New(),
		opts:     opts.withDefaults(),
		log:      log.With().Str("component", "message-service").Logger(),
	}
}

func (s *service) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *service) Send(ctx context.Context, actor domain.Principal, chatID string, input SendInput) (*Message, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}
	if _, err := s.members.RequireMember(ctx, chatID, actor.ID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" && len(input.Attachments) == 0 {
		return nil, validationError(ctx, "message needs content or at least one attachment", "message-empty")
	}
	if err := s.checkLength(ctx, content); err != nil {
		return nil, err
	}
	if len(input.Attachments) > s.opts.AttachmentsPerMessage {
		return nil, validationError(ctx, fmt.Sprintf("at most %d attachments per message", s.opts.AttachmentsPerMessage), "message-too-many-attachments")
	}
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, s.structError(ctx, err)
	}

	var replyTo *string
	if input.ReplyToID != nil && strings.TrimSpace(*input.ReplyToID) != "" {
		id := strings.TrimSpace(*input.ReplyToID)
		target, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
				return nil, validationError(ctx, "reply target does not exist", "message-reply-missing")
			}
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load reply target")
		}
		if target.ChatID != chatID {
			return nil, validationError(ctx, "reply target belongs to another chat", "message-reply-foreign")
		}
		replyTo = &id
	}

	now := s.now()
	msg := &Message{
		ID:          idgen.NewAt(idgen.PrefixMessage, now),
		ChatID:      chatID,
		AuthorID:    actor.ID,
		Content:     content,
		Attachments: append(make([]attachment.Descriptor, 0, len(input.Attachments)), input.Attachments...),
		Mentions:    ExtractMentions(content),
		ReplyToID:   replyTo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, msg); err != nil {
			return err
		}
		return s.members.Touch(ctx, chatID, now)
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "send message")
	}

	s.log.Debug().
		Str("chat_id", chatID).
		Str("message_id", msg.ID).
		Str("author_id", actor.ID).
		Int("mentions", len(msg.Mentions)).
		Int("attachments", len(msg.Attachments)).
		Msg("message sent")
	return msg, nil
}

func (s *service) Edit(ctx context.Context, actor domain.Principal, messageID, content string) (*Message, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError(ctx, "content is required", "message-edit-empty")
	}
	if err := s.checkLength(ctx, content); err != nil {
		return nil, err
	}

	rows, err := s.repo.Edit(ctx, EditParams{
		ID:       messageID,
		AuthorID: actor.ID,
		Content:  content,
		Mentions: ExtractMentions(content),
		At:       s.now(),
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "edit message")
	}
	if rows == 0 {
		if _, err := s.explainMiss(ctx, messageID, actor.ID); err != nil {
			return nil, err
		}
		// Tombstones cannot be edited.
		return nil, notFoundError(ctx, messageID)
	}

	return s.reload(ctx, messageID)
}

func (s *service) Delete(ctx context.Context, actor domain.Principal, messageID string) (*Message, error) {
	if err := requireActor(ctx, actor); err != nil {
		return nil, err
	}

	rows, err := s.repo.SoftDelete(ctx, messageID, actor.ID, s.now())
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "delete message")
	}
	if rows == 0 {
		existing, err := s.explainMiss(ctx, messageID, actor.ID)
		if err != nil {
			return nil, err
		}
		s.log.Debug().Str("message_id", messageID).Msg("message already deleted")
		return existing, nil
	}

	msg, err := s.reload(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("chat_id", msg.ChatID).Str("message_id", messageID).Msg("message deleted")
	return msg, nil
}

// explainMiss classifies a conditional write that touched no row. It returns
// the existing tombstone when the caller owns an already deleted message.
func (s *service) explainMiss(ctx context.Context, messageID, actorID string) (*Message, error) {
	existing, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, notFoundError(ctx, messageID)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load message")
	}
	if existing.AuthorID != actorID {
		return nil, platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeForbidden,
			"only the author can change this message",
			nil,
			"message-not-author",
			map[string]any{"message_id": messageID},
		)
	}
	if !existing.IsDeleted() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"message changed concurrently", nil, "message-write-race")
	}
	return existing, nil
}

func (s *service) reload(ctx context.Context, messageID string) (*Message, error) {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "reload message")
	}
	return msg, nil
}

func (s *service) List(ctx context.Context, actor domain.Principal, chatID string, page Page) ([]*Message, error) {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return nil, err
	}

	limit := clamp(page.Limit, s.opts.PageSize, s.opts.PageMax)

	var cursor *Cursor
	if page.BeforeID != nil && *page.BeforeID != "" {
		anchor, err := s.repo.FindByID(ctx, *page.BeforeID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve page cursor")
		}
		if anchor.ChatID != chatID {
			return nil, validationError(ctx, "cursor message belongs to another chat", "message-cursor-foreign")
		}
		cursor = &Cursor{CreatedAt: anchor.CreatedAt, ID: anchor.ID}
	}

	msgs, err := s.repo.ListBefore(ctx, chatID, cursor, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list messages")
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *service) Search(ctx context.Context, actor domain.Principal, chatID, query string) ([]*Message, error) {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError(ctx, "search query is required", "message-search-empty")
	}
	if utf8.RuneCountInString(query) > s.opts.MaxQueryLength {
		return nil, validationError(ctx, "search query is too long", "message-search-long")
	}

	msgs, err := s.repo.Search(ctx, chatID, query, s.opts.SearchLimit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "search messages")
	}
	return msgs, nil
}

func (s *service) Attachments(ctx context.Context, actor domain.Principal, chatID string) ([]*ChatAttachment, error) {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListWithAttachments(ctx, chatID, s.opts.AttachmentListMax)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list attachments")
	}

	out := make([]*ChatAttachment, 0, len(msgs))
	for _, msg := range msgs {
		for _, desc := range msg.Attachments {
			if len(out) == s.opts.AttachmentListMax {
				return out, nil
			}
			out = append(out, &ChatAttachment{
				MessageID:  msg.ID,
				AuthorID:   msg.AuthorID,
				CreatedAt:  msg.CreatedAt,
				Descriptor: desc,
			})
		}
	}
	return out, nil
}

func (s *service) Changes(ctx context.Context, actor domain.Principal, chatID string, after SyncPosition, limit int) ([]*Message, error) {
	if err := s.requireMember(ctx, actor, chatID); err != nil {
		return nil, err
	}

	after.UpdatedAt = after.UpdatedAt.UTC()
	msgs, err := s.repo.ListChangedAfter(ctx, chatID, after, clamp(limit, s.opts.SyncMax, s.opts.SyncMax))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list message changes")
	}
	return msgs, nil
}

func (s *service) ReplyTargets(ctx context.Context, chatID string, msgs []*Message) (map[string]*Message, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, msg := range msgs {
		if msg.ReplyToID == nil {
			continue
		}
		if _, ok := seen[*msg.ReplyToID]; ok {
			continue
		}
		seen[*msg.ReplyToID] = struct{}{}
		ids = append(ids, *msg.ReplyToID)
	}
	if len(ids) == 0 {
		return map[string]*Message{}, nil
	}

	targets, err := s.repo.FindByIDs(ctx, chatID, ids)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load reply targets")
	}
	out := make(map[string]*Message, len(targets))
	for _, t := range targets {
		out[t.ID] = t
	}
	return out, nil
}

func (s *service) Latest(ctx context.Context, chatIDs []string) (map[string]*Message, error) {
	if len(chatIDs) == 0 {
		return map[string]*Message{}, nil
	}
	latest, err := s.repo.LatestByChats(ctx, chatIDs)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load latest messages")
	}
	return latest, nil
}

func (s *service) requireMember(ctx context.Context, actor domain.Principal, chatID string) error {
	if err := requireActor(ctx, actor); err != nil {
		return err
	}
	_, err := s.members.RequireMember(ctx, chatID, actor.ID)
	return err
}

func (s *service) checkLength(ctx context.Context, content string) error {
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return validationError(ctx, fmt.Sprintf("content exceeds %d characters", s.opts.MaxContentLength), "message-too-long")
	}
	return nil
}

func (s *service) structError(ctx context.Context, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError(ctx, err.Error(), "message-invalid")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return platformerrors.NewErrorWithContext(
		ctx,
		platformerrors.LayerDomain,
		platformerrors.ErrorTypeValidation,
		"invalid attachment descriptor: "+strings.Join(fields, "; "),
		err,
		"message-invalid-attachment",
		map[string]any{"fields": fields},
	)
}

func clamp(value, fallback, max int) int {
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func requireActor(ctx context.Context, actor domain.Principal) error {
	if strings.TrimSpace(actor.ID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"authentication required", nil, "message-unauthenticated")
	}
	return nil
}

func validationError(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, message, nil, code)
}

func notFoundError(ctx context.Context, messageID string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"message not found", nil, "message-not-found", map[string]any{"message_id": messageID})
}
