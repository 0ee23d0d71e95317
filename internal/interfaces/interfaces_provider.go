package interfaces

import (
	"github.com/google/wire"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/infrastructure"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/messagehandler"
)

func ProvidePaging(cfg *config.Config) messagehandler.Paging {
	return messagehandler.Paging{Default: cfg.MessagePageSize, Max: cfg.MessagePageMax}
}

// ProvideReadinessChecks probes the store and the attachment backend.
func ProvideReadinessChecks(stores *infrastructure.Stores, attachments attachment.Service) []httpserver.ReadinessCheck {
	return []httpserver.ReadinessCheck{
		{Name: "database", Check: stores.Ping},
		{Name: "attachments", Check: attachments.Health},
	}
}

var InterfacesProvider = wire.NewSet(
	ProvidePaging,
	ProvideReadinessChecks,
	httpserver.NewHttpServer,
)
