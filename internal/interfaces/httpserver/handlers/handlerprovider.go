package handlers

import (
	"github.com/google/wire"

	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/attachmenthandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/messagehandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/synchandler"
)

var HandlerProvider = wire.NewSet(
	chathandler.NewChatHandler,
	messagehandler.NewMessageHandler,
	synchandler.NewSyncHandler,
	attachmenthandler.NewAttachmentHandler,
)
