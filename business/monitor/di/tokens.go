// Package di contains dependency injection tokens for the monitor context.
package di

import (
	"github.com/fd1az/swap-sentinel/business/monitor/app"
	"github.com/fd1az/swap-sentinel/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Monitor = di.NewToken[*app.Monitor]("monitor.Monitor")
)

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}
