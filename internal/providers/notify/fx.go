package notify

import "go.uber.org/fx"

var Module = fx.Module("notify",
	fx.Provide(
		func(s *LogSink) Sink { return s },
		NewLogSink,
	),
)
