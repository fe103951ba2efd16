// Package marketdata implements the market data bounded context: exchange
// feeds and their supervisor.
package marketdata

import (
	"context"

	"github.com/fd1az/spreadget/business/marketdata/app"
	marketdataDI "github.com/fd1az/spreadget/business/marketdata/di"
	"github.com/fd1az/spreadget/business/marketdata/infra/binance"
	"github.com/fd1az/spreadget/business/marketdata/infra/bitstamp"
	"github.com/fd1az/spreadget/internal/config"
	"github.com/fd1az/spreadget/internal/di"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/monolith"
)

// Module implements the market data bounded context.
type Module struct{}

// RegisterServices registers all market data services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketdataDI.Feeds, func(sr di.ServiceRegistry) []app.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		binanceFeed, err := binance.New(binance.Config{
			BaseURL:        cfg.Exchanges.BinanceURL,
			ConnectTimeout: cfg.Exchanges.ConnectTimeout,
			WriteTimeout:   cfg.Exchanges.ConnectTimeout,
		}, log)
		if err != nil {
			panic("failed to create binance feed: " + err.Error())
		}

		bitstampFeed, err := bitstamp.New(bitstamp.Config{
			URL:            cfg.Exchanges.BitstampURL,
			ConnectTimeout: cfg.Exchanges.ConnectTimeout,
			WriteTimeout:   cfg.Exchanges.ConnectTimeout,
		}, log)
		if err != nil {
			panic("failed to create bitstamp feed: " + err.Error())
		}

		return []app.Feed{binanceFeed, bitstampFeed}
	})

	di.RegisterToken(c, marketdataDI.Supervisor, func(sr di.ServiceRegistry) *app.Supervisor {
		log := sr.Get("logger").(logger.LoggerInterface)

		sup, err := app.NewSupervisor(marketdataDI.GetFeeds(sr), log)
		if err != nil {
			panic("failed to create feed supervisor: " + err.Error())
		}
		return sup
	})

	return nil
}

// Startup launches the feeds under supervision.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sup := marketdataDI.GetSupervisor(mono.Services())
	sup.Start(ctx, mono.Config().Market.Symbol)

	mono.Logger().Info(ctx, "market data module started",
		"symbol", mono.Config().Market.Symbol)
	return nil
}
