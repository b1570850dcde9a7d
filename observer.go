// Package qpgo provides a cooperative, single-threaded active-object
// framework: a hierarchical state machine executor, an active-object
// wrapper around it with a prioritized FIFO mailbox, a run-to-completion
// scheduler, and a time-event service.
//
// This file covers the framework's optional lifecycle observability: a
// CloudEvents-based Publisher that lets a host application watch active
// object starts, time event firings, and shutdown without coupling the
// core RTC loop to any transport.
package qpgo

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Publisher receives lifecycle CloudEvents emitted by a Framework.
// Delivery is best-effort and must not block the RTC loop: a Framework
// calls Publish synchronously but treats any error as a logged warning,
// never as a reason to alter dispatch.
type Publisher interface {
	Publish(ctx context.Context, event cloudevents.Event) error
}

// EventType constants for CloudEvents emitted by the core framework.
// These follow the CloudEvents reverse-domain-notation convention.
const (
	EventTypeAOStarted      = "io.qpgo.activeobject.started"
	EventTypeAOStopped      = "io.qpgo.activeobject.stopped"
	EventTypeFrameworkStart = "io.qpgo.framework.started"
	EventTypeFrameworkStop  = "io.qpgo.framework.stopped"
	EventTypeTimeEventFired = "io.qpgo.timeevent.fired"
	EventTypeDispatchPanic  = "io.qpgo.dispatch.panic"
)

// lifecycleEvent builds a CloudEvents-formatted event for a framework source.
func lifecycleEvent(source, eventType string, data map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(timeNow())
	event.SetID(newEventID())
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// timeNow and newEventID are indirected so tests can construct deterministic
// events without touching the wall clock or the UUID source.
var timeNow = time.Now

var newEventID = uuid.NewString

// FuncPublisher adapts a plain function to the Publisher interface, mirroring
// the functional-observer convenience constructor this pattern is modeled on.
type FuncPublisher func(ctx context.Context, event cloudevents.Event) error

func (f FuncPublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	return f(ctx, event)
}

// NoopPublisher discards every event. It is the Framework's default so that
// CloudEvents emission is strictly opt-in.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, cloudevents.Event) error { return nil }
