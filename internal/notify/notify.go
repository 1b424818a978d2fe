// Package notify broadcasts engine mutations to interested listeners.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mutation event names published by the engine.
const (
	EventsCreated   = "events:created"
	EventsUpdated   = "events:updated"
	PlanningCreated = "planning:created"
	PlanningUpdated = "planning:updated"
	CoverageAdded   = "coverage:added"
	CoverageDeleted = "coverage:deleted"
	ItemsExpired    = "items:expired"
)

// Publisher receives a notification after a mutation has been
// persisted. Implementations must not block the calling write path.
type Publisher interface {
	Publish(ctx context.Context, event string, payload map[string]any)
}

// LogPublisher writes notifications to the structured log. It is the
// default publisher when no external transport is wired up.
type LogPublisher struct {
	log *logrus.Logger
}

// NewLogPublisher builds a LogPublisher on the given logger.
func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogPublisher{log: log}
}

// Publish logs the notification at debug level.
func (p *LogPublisher) Publish(_ context.Context, event string, payload map[string]any) {
	p.log.WithFields(logrus.Fields(payload)).Debug(event)
}

// NopPublisher discards every notification.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, map[string]any) {}
