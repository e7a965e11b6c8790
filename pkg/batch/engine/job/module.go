package job

import (
	"go.uber.org/fx"
)

// Module wires the job driver. The JobKind itself is supplied by the
// entrypoint from the -job flag.
var Module = fx.Options(
	fx.Provide(NewDriver),
)
