// Package di contains dependency injection tokens for the swap context.
package di

import (
	"github.com/fd1az/swap-sentinel/business/swap/app"
	"github.com/fd1az/swap-sentinel/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service  = di.NewToken[*app.Service]("swap.Service")
	Reporter = di.NewToken[app.ResultSink]("swap.Reporter")
)

// Private dependency tokens - internal to swap module
var (
	Router = di.NewToken[app.RouterEncoder]("swap:router")
)

func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetReporter(c di.ServiceRegistry) app.ResultSink {
	return di.GetToken(c, Reporter)
}

func GetRouter(c di.ServiceRegistry) app.RouterEncoder {
	return di.GetToken(c, Router)
}
