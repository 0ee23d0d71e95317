// Package app wires the messaging API by hand from the same providers the
// Wire graph in cmd/server uses.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain/serviceprovider"
	"github.com/worknest/messaging-api/internal/infrastructure"
	"github.com/worknest/messaging-api/internal/interfaces"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/attachmenthandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/messagehandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/synchandler"
	v1 "github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/attachments"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/chats"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/messages"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/polling"
)

// Build assembles the HTTP server and every dependency behind it. The returned
// cleanup closes the stores and must be called once the server has stopped.
func Build(cfg *config.Config, log zerolog.Logger) (*httpserver.HTTPServer, func(), error) {
	stores, closeStores, err := infrastructure.ProvideStores(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open stores: %w", err)
	}
	presenceStore, closePresence, err := infrastructure.ProvidePresenceStore(cfg, log)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("open presence store: %w", err)
	}
	cleanup := func() {
		closePresence()
		closeStores()
	}

	attachmentStorage, err := infrastructure.ProvideAttachmentStorage(cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize attachment storage: %w", err)
	}
	validator, err := infrastructure.ProvideTokenValidator(cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize token validator: %w", err)
	}

	chatService := serviceprovider.ProvideChatService(stores.Chats, stores.Members, stores.Messages, stores.Tx, cfg, log)
	gate := serviceprovider.ProvideGate(chatService)
	messageService := serviceprovider.ProvideMessageService(stores.Messages, chatService, stores.Tx, cfg, log)
	readService := serviceprovider.ProvideReadStateService(stores.ReadState, gate, log)
	userService, err := serviceprovider.ProvideUserService(stores.Users, cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize user directory: %w", err)
	}
	presenceService := serviceprovider.ProvidePresenceService(presenceStore, gate, infrastructure.ProvidePresenceOptions(cfg), log)
	pollService := serviceprovider.ProvidePollService(messageService, presenceService, readService, cfg, log)
	attachmentService := serviceprovider.ProvideAttachmentService(attachmentStorage, cfg, log)

	chatHandler := chathandler.NewChatHandler(chatService, messageService, readService, userService, log)
	messageHandler := messagehandler.NewMessageHandler(messageService, readService, userService, interfaces.ProvidePaging(cfg), log)
	syncHandler := synchandler.NewSyncHandler(presenceService, pollService, messageHandler, log)
	attachmentHandler := attachmenthandler.NewAttachmentHandler(attachmentService, log)

	v1Route := v1.NewV1Route(
		chats.NewChatRoute(chatHandler, log),
		messages.NewMessageRoute(messageHandler, log),
		polling.NewSyncRoute(syncHandler, log),
		attachments.NewAttachmentRoute(attachmentHandler, log),
	)

	httpServer := httpserver.NewHttpServer(cfg, log, v1Route, userService, validator,
		interfaces.ProvideReadinessChecks(stores, attachmentService))
	return httpServer, cleanup, nil
}
