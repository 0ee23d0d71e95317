//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/worknest/messaging-api/internal/domain/serviceprovider"
	"github.com/worknest/messaging-api/internal/infrastructure"
	"github.com/worknest/messaging-api/internal/interfaces"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes"
)

// BuildApplication assembles the messaging API with Wire.
func BuildApplication() (*Application, func(), error) {
	wire.Build(
		infrastructure.InfrastructureProvider,
		serviceprovider.ServiceProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		NewApplication,
	)
	return nil, nil, nil
}
