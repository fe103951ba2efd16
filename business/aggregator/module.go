// Package aggregator implements the aggregation bounded context: the merge
// engine and the subscribe facade.
package aggregator

import (
	"context"

	"github.com/fd1az/spreadget/business/aggregator/app"
	aggregatorDI "github.com/fd1az/spreadget/business/aggregator/di"
	marketdataDI "github.com/fd1az/spreadget/business/marketdata/di"
	"github.com/fd1az/spreadget/internal/di"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/monolith"
)

// Module implements the aggregator bounded context.
type Module struct{}

// RegisterServices registers all aggregator services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, aggregatorDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		log := sr.Get("logger").(logger.LoggerInterface)
		sup := marketdataDI.GetSupervisor(sr)

		engine, err := app.NewEngine(sup.Updates(), log)
		if err != nil {
			panic("failed to create aggregation engine: " + err.Error())
		}
		return engine
	})

	di.RegisterToken(c, aggregatorDI.Service, func(sr di.ServiceRegistry) *app.Service {
		return app.NewService(aggregatorDI.GetEngine(sr))
	})

	return nil
}

// Startup launches the engine loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := aggregatorDI.GetEngine(mono.Services())
	go engine.Run(ctx)

	mono.Logger().Info(ctx, "aggregator module started")
	return nil
}
