// Package di contains dependency injection tokens for the aggregator context.
package di

import (
	"github.com/fd1az/spreadget/business/aggregator/app"
	internaldi "github.com/fd1az/spreadget/internal/di"
)

// DI tokens for the aggregator module.
const (
	Engine  = "aggregator.Engine"
	Service = "aggregator.Service"
)

// GetEngine resolves the aggregation engine.
func GetEngine(sr internaldi.ServiceRegistry) *app.Engine {
	return internaldi.Resolve[*app.Engine](sr, Engine)
}

// GetService resolves the subscribe facade.
func GetService(sr internaldi.ServiceRegistry) *app.Service {
	return internaldi.Resolve[*app.Service](sr, Service)
}
