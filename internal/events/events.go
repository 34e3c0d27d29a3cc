// Package events is a synchronous in-process publish/subscribe bus used for
// enrollment tracking events and signals.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EnrollmentActivated   = "edx.course.enrollment.activated"
	EnrollmentDeactivated = "edx.course.enrollment.deactivated"
	EnrollmentModeChanged = "edx.course.enrollment.mode_changed"

	// UnenrollDone is a signal, not a tracking event. Its Subject carries the
	// enrollment and whether a refund should be skipped.
	UnenrollDone = "unenroll_done"

	// Wildcard subscribes a handler to every event name.
	Wildcard = "*"
)

// Event is one published occurrence.
type Event struct {
	Name     string
	UserID   string
	CourseID string
	Data     map[string]any
	Subject  any
	Time     time.Time
}

type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

type Publisher interface {
	Publish(ctx context.Context, ev Event) int
}

type registration struct {
	event   string
	name    string
	handler Handler
}

// Bus delivers each event to its subscribers in registration order.
// A failing or panicking handler is logged and does not stop delivery.
type Bus struct {
	mu   sync.RWMutex
	regs []registration
	log  *zap.Logger
	now  func() time.Time
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log: log.Named("events.bus"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers handler for eventName. handlerName identifies it in logs.
func (b *Bus) Subscribe(eventName, handlerName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs = append(b.regs, registration{event: eventName, name: handlerName, handler: handler})
}

// Publish returns the number of handlers that completed without error.
func (b *Bus) Publish(ctx context.Context, ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	regs := make([]registration, 0, len(b.regs))
	for _, reg := range b.regs {
		if reg.event == ev.Name || reg.event == Wildcard {
			regs = append(regs, reg)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, reg := range regs {
		if err := b.dispatch(ctx, reg, ev); err != nil {
			b.log.Error("event handler failed",
				zap.String("event", ev.Name),
				zap.String("handler", reg.name),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bus) dispatch(ctx context.Context, reg registration, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.handler.Handle(ctx, ev)
}
