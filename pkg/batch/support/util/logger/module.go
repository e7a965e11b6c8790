package logger

import (
	"go.uber.org/fx"
)

// Module provides the Fx module for the logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
