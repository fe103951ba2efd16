// Package di contains dependency injection tokens for the market data context.
package di

import (
	"github.com/fd1az/spreadget/business/marketdata/app"
	internaldi "github.com/fd1az/spreadget/internal/di"
)

// DI tokens for the market data module.
const (
	Feeds      = "marketdata.Feeds"
	Supervisor = "marketdata.Supervisor"
)

// GetFeeds resolves the configured exchange feeds.
func GetFeeds(sr internaldi.ServiceRegistry) []app.Feed {
	return internaldi.Resolve[[]app.Feed](sr, Feeds)
}

// GetSupervisor resolves the feed supervisor.
func GetSupervisor(sr internaldi.ServiceRegistry) *app.Supervisor {
	return internaldi.Resolve[*app.Supervisor](sr, Supervisor)
}
