// Package autoload configures the global zerolog logger from the environment
// as a side effect of being imported.
package autoload

import (
	configx "github.com/vrtravels/tour-concierge/pkg/config"
	logx "github.com/vrtravels/tour-concierge/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
