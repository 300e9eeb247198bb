package roles

import "go.uber.org/fx"

var Module = fx.Module("roles",
	fx.Provide(
		NewDirectory,
		func(d *Directory) Provider { return d },
	),
)
