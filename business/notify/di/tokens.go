// Package di contains dependency injection tokens for the notify context.
package di

import (
	"github.com/fd1az/swap-sentinel/business/notify/app"
	"github.com/fd1az/swap-sentinel/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Dispatcher = di.NewToken[*app.Dispatcher]("notify.Dispatcher")
)

// Private dependency tokens - internal to notify module
var (
	Notifier = di.NewToken[*app.Notifier]("notify:notifier")
)

func GetDispatcher(c di.ServiceRegistry) *app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}

func GetNotifier(c di.ServiceRegistry) *app.Notifier {
	return di.GetToken(c, Notifier)
}
