package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewFeaturesHolder),
	fx.Provide(func(h *FeaturesHolder) FeatureSource { return h }),
)
