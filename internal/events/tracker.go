package events

import (
	"context"

	"go.uber.org/zap"
)

type logTracker struct {
	log *zap.Logger
}

// NewLogTracker writes every tracking event to the structured log.
func NewLogTracker(log *zap.Logger) Handler {
	return &logTracker{log: log.Named("events.tracker")}
}

func (t *logTracker) Handle(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event", ev.Name),
		zap.String("user_id", ev.UserID),
		zap.String("course_id", ev.CourseID),
	}
	if mode, ok := ev.Data["mode"].(string); ok {
		fields = append(fields, zap.String("mode", mode))
	}
	t.log.Info("tracking event", fields...)
	return nil
}

// IsTrackingEvent reports whether name is shipped to analytics. Signals are not.
func IsTrackingEvent(name string) bool {
	switch name {
	case EnrollmentActivated, EnrollmentDeactivated, EnrollmentModeChanged:
		return true
	default:
		return false
	}
}
