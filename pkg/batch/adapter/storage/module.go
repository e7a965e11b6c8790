package storage

import (
	"go.uber.org/fx"
)

// Module provides the storage connection resolver, collecting every registered
// storage provider into it.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolver,
		fx.ParamTags(`group:"storage_providers"`),
	)),
)
