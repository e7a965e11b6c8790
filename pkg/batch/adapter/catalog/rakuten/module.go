// Package rakuten provides the Fx module for the Rakuten catalog client.
package rakuten

import (
	"go.uber.org/fx"

	"github.com/tigerroll/comical/pkg/batch/adapter/catalog"
)

// Module is the Fx module for the Rakuten catalog client.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewClient,
		fx.As(new(catalog.Client)),
	)),
)
