// Package autoload initializes the global logger from the environment on
// import. Blank-import it in main.
package autoload

import (
	configx "github.com/hyomin-dev/leadscout/pkg/config"
	logx "github.com/hyomin-dev/leadscout/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
