package routes

import (
	"github.com/google/wire"

	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers"
	v1 "github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/attachments"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/chats"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/messages"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/polling"
)

var RouteProvider = wire.NewSet(
	handlers.HandlerProvider,

	v1.NewV1Route,
	chats.NewChatRoute,
	messages.NewMessageRoute,
	polling.NewSyncRoute,
	attachments.NewAttachmentRoute,
)
