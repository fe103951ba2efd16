// Package di contains dependency injection tokens for the stream context.
package di

import (
	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
	internaldi "github.com/fd1az/spreadget/internal/di"
)

// DI tokens for the stream module.
const (
	Server = "stream.Server"
)

// GetServer resolves the subscriber stream server.
func GetServer(sr internaldi.ServiceRegistry) *wsapi.Server {
	return internaldi.Resolve[*wsapi.Server](sr, Server)
}
