package events

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

var Module = fx.Module("events",
	fx.Provide(NewBus),
	fx.Provide(func(b *Bus) Publisher { return b }),
	fx.Invoke(registerTrackers),
)

func registerTrackers(bus *Bus, p Params) {
	for _, name := range []string{EnrollmentActivated, EnrollmentDeactivated, EnrollmentModeChanged} {
		bus.Subscribe(name, "outbox", NewOutboxHandler(p.DB))
		bus.Subscribe(name, "log", NewLogTracker(p.Log))
	}
}
