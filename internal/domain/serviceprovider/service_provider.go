// Package serviceprovider builds the domain services from configuration.
package serviceprovider

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/poll"
	"github.com/worknest/messaging-api/internal/domain/presence"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/domain/user"
)

func ProvideChatService(
	chats chat.Repository,
	members chat.MemberRepository,
	messages message.Repository,
	tx domain.Transactor,
	cfg *config.Config,
	log zerolog.Logger,
) chat.Service {
	return chat.NewService(chats, members, messages, tx, chat.Options{GroupMemberLimit: cfg.GroupMemberLimit}, log)
}

// ProvideGate exposes the chat service as the membership check of the
// chat-scoped services.
func ProvideGate(chats chat.Service) chat.Gate {
	return chats
}

func ProvideMessageService(repo message.Repository, chats chat.Service, tx domain.Transactor, cfg *config.Config, log zerolog.Logger) message.Service {
	return message.NewService(repo, chats, tx, message.Options{
		PageSize:              cfg.MessagePageSize,
		PageMax:               cfg.MessagePageMax,
		MaxContentLength:      cfg.MessageMaxLength,
		SearchLimit:           cfg.SearchResultLimit,
		AttachmentListMax:     cfg.AttachmentListMax,
		AttachmentsPerMessage: cfg.AttachmentsPerMsg,
		SyncMax:               cfg.SyncPageMax,
	}, log)
}

func ProvideReadStateService(repo readstate.Repository, gate chat.Gate, log zerolog.Logger) readstate.Service {
	return readstate.NewService(repo, gate, nil, log)
}

func ProvideUserService(repo user.Repository, cfg *config.Config, log zerolog.Logger) (user.Service, error) {
	return user.NewService(repo, cfg.UserCacheSize, log)
}

func ProvidePresenceService(store presence.Store, gate chat.Gate, opts presence.Options, log zerolog.Logger) presence.Service {
	return presence.NewService(store, gate, opts, log)
}

func ProvidePollService(messages message.Service, typing presence.Service, reads readstate.Service, cfg *config.Config, log zerolog.Logger) poll.Service {
	return poll.NewService(messages, typing, reads, poll.Options{
		PageMax: cfg.SyncPageMax,
		Lag:     cfg.SyncLag,
	}, log)
}

func ProvideAttachmentService(storage attachment.Storage, cfg *config.Config, log zerolog.Logger) attachment.Service {
	return attachment.NewService(storage, attachment.Options{
		MaxBytes:      cfg.AttachmentMaxBytes,
		PublicBaseURL: cfg.AttachmentPublicBaseURL,
		PresignTTL:    cfg.S3PresignTTL,
	}, log)
}

var ServiceProvider = wire.NewSet(
	ProvideChatService,
	ProvideGate,
	ProvideMessageService,
	ProvideReadStateService,
	ProvideUserService,
	ProvidePresenceService,
	ProvidePollService,
	ProvideAttachmentService,
)
