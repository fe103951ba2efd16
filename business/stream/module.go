// Package stream implements the subscriber-facing transport bounded
// context.
package stream

import (
	"context"

	aggregatorDI "github.com/fd1az/spreadget/business/aggregator/di"
	streamDI "github.com/fd1az/spreadget/business/stream/di"
	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
	"github.com/fd1az/spreadget/internal/config"
	"github.com/fd1az/spreadget/internal/di"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/monolith"
)

// Module implements the stream bounded context.
type Module struct{}

// RegisterServices registers all stream services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, streamDI.Server, func(sr di.ServiceRegistry) *wsapi.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		server, err := wsapi.NewServer(wsapi.Config{
			Address:              cfg.Stream.Address,
			MaxSubscribersPerSec: cfg.Stream.MaxSubscribersPerSec,
		}, aggregatorDI.GetService(sr), log)
		if err != nil {
			panic("failed to create stream server: " + err.Error())
		}
		return server
	})

	return nil
}

// Startup binds the stream listener.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	server := streamDI.GetServer(mono.Services())
	if err := server.Start(ctx); err != nil {
		return err
	}

	mono.Logger().Info(ctx, "stream module started", "address", server.Addr())
	return nil
}
