// Package qpgo provides a cooperative, single-threaded active-object
// framework built around a hierarchical state machine executor, modeled
// after resource-constrained event-driven systems.
//
// Framework ties together the signal registry, the active-object registry,
// the publish/subscribe table, and the time-event service. All framework
// and active-object state is mutated from exactly one goroutine — the one
// running RunForever (or, in tests, the one calling RTC-driving methods
// directly). The Framework's mutex guards its own registry, subscriber
// table, and lifecycle flags; it does not guard active-object mailboxes,
// so code on another goroutine must hand its Post or Publish call to
// EventLoop.DeferSoon rather than call it directly. The mutex is never a
// substitute for the run-to-completion contract.
package qpgo

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Framework is an independent scheduler instance: its AO registry, signal
// registry, subscriber table, and time-event queue are not process-wide
// state, so a process may construct several Frameworks (one per test, or
// one per isolated subsystem) without interference.
type Framework struct {
	mu sync.Mutex

	Signals     *SignalRegistry
	aoRegistry  []Runnable
	priorityIdx map[int]Runnable
	subscribers map[SignalID][]Runnable

	timers *timerQueue
	loop   EventLoop
	logger Logger
	pub    Publisher
	cfg    Config

	running   bool
	stopped   bool
	loggerSet bool

	source string
}

// Option configures a Framework at construction.
type Option func(*Framework)

// WithEventLoop overrides the default StdEventLoop.
func WithEventLoop(loop EventLoop) Option {
	return func(fw *Framework) { fw.loop = loop }
}

// WithLogger overrides the default slog-backed Logger. A nil logger
// installs a no-op Logger. Without this option, the Framework builds its
// own SlogLogger once every option has been applied, leveled by
// Config.Debug (see WithConfig).
func WithLogger(logger Logger) Option {
	return func(fw *Framework) {
		if logger == nil {
			logger = noopLogger{}
		}
		fw.logger = logger
		fw.loggerSet = true
	}
}

// WithPublisher installs a CloudEvents Publisher for lifecycle
// notifications. Without this option, lifecycle events are discarded.
func WithPublisher(pub Publisher) Option {
	return func(fw *Framework) { fw.pub = pub }
}

// WithSource sets the CloudEvents source attribute used on emitted
// lifecycle events. Defaults to "qpgo".
func WithSource(source string) Option {
	return func(fw *Framework) { fw.source = source }
}

// WithConfig installs cfg, whose MailboxCapacityHint becomes the default
// mailbox capacity for any active object started without an explicit
// SetMailboxCapacity call, and whose Debug flag sets the default logger's
// level (see WithLogger).
func WithConfig(cfg Config) Option {
	return func(fw *Framework) { fw.cfg = cfg }
}

// NewFramework constructs a Framework ready to register active objects.
// Unless WithLogger overrides it, the installed Logger is leveled by the
// final Config's Debug flag, so WithConfig may be given in either order
// relative to WithLogger.
func NewFramework(opts ...Option) *Framework {
	fw := &Framework{
		Signals:     NewSignalRegistry(),
		priorityIdx: make(map[int]Runnable),
		subscribers: make(map[SignalID][]Runnable),
		loop:        NewStdEventLoop(),
		pub:         NoopPublisher{},
		cfg:         DefaultConfig(),
		source:      "qpgo",
	}
	fw.timers = newTimerQueue(fw)
	for _, opt := range opts {
		opt(fw)
	}
	if !fw.loggerSet {
		fw.logger = newDefaultLogger(fw.cfg.Debug)
	}
	return fw
}

// register adds r to the AO registry under its priority. A duplicate
// priority is a programming contract violation.
func (fw *Framework) register(r Runnable) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, dup := fw.priorityIdx[r.Priority()]; dup {
		contractViolation("register", fmt.Sprintf("priority %d already registered", r.Priority()))
	}
	fw.priorityIdx[r.Priority()] = r
	fw.aoRegistry = append(fw.aoRegistry, r)
	fw.logger.Debug("active object registered", "name", r.Name(), "priority", r.Priority())
}

// AOAt returns the active object registered at priority, or
// ErrUnknownPriority if none is.
func (fw *Framework) AOAt(priority int) (Runnable, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	r, ok := fw.priorityIdx[priority]
	if !ok {
		return nil, ErrUnknownPriority
	}
	return r, nil
}

// Subscribe registers r to receive every Publish'd event for signal name,
// registering the signal if it doesn't already exist. Subscriber order is
// preserved: Publish delivers to subscribers in the order they subscribed.
func (fw *Framework) Subscribe(name string, r Runnable) {
	id := fw.Signals.Register(name)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.subscribers[id] = append(fw.subscribers[id], r)
}

// Publish enqueues event to every subscriber of event.Signal, in
// subscription order, then requests an RTC cycle. A subscriber whose
// mailbox is at capacity is logged and skipped; the rest still receive it.
func (fw *Framework) Publish(event Event) {
	fw.mu.Lock()
	subs := append([]Runnable(nil), fw.subscribers[event.Signal]...)
	fw.mu.Unlock()
	for _, r := range subs {
		if err := r.PostFIFO(event); err != nil {
			fw.logger.Warn("publish dropped", "ao", r.Name(), "signal", event.Signal, "error", err)
		}
	}
	fw.requestRTC()
}

// Post enqueues event directly onto r's mailbox and requests an RTC cycle.
// Returns ErrFrameworkStopped if the framework has already shut down, or
// ErrMailboxFull without scheduling an RTC cycle if r's mailbox is at
// capacity.
func (fw *Framework) Post(event Event, r Runnable) error {
	fw.mu.Lock()
	stopped := fw.stopped
	fw.mu.Unlock()
	if stopped {
		return ErrFrameworkStopped
	}
	if err := r.PostFIFO(event); err != nil {
		return err
	}
	fw.requestRTC()
	return nil
}

// requestRTC defers one run() pass onto the event loop so it executes after
// the current task yields, matching the "call soon" scheduling the RTC
// contract depends on.
func (fw *Framework) requestRTC() {
	fw.loop.DeferSoon(fw.run)
}

// run is the RTC loop: it repeatedly finds the highest-priority active
// object with a non-empty mailbox, dispatches exactly one event to it, and
// restarts the scan, so a newly arrived high-priority event always
// preempts pending low-priority work at event granularity. It returns when
// no mailbox holds a pending event.
func (fw *Framework) run() {
	for {
		next := fw.highestPriorityPending()
		if next == nil {
			return
		}
		event := next.PopMessage()
		fw.dispatchRecovered(next, event)
	}
}

func (fw *Framework) highestPriorityPending() Runnable {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	sorted := append([]Runnable(nil), fw.aoRegistry...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })
	for _, r := range sorted {
		if r.HasMessages() {
			return r
		}
	}
	return nil
}

// dispatchRecovered dispatches event to r, logging and re-raising any
// contract violation that escapes dispatch. Contract violations are fatal
// by design; recovering here only gives the host process a structured log
// line and a lifecycle event before the panic continues to unwind.
func (fw *Framework) dispatchRecovered(r Runnable, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			fw.logger.Error("dispatch panic", "ao", r.Name(), "signal", event.Signal, "panic", rec)
			fw.publishLifecycle(EventTypeDispatchPanic, map[string]any{
				"ao":     r.Name(),
				"signal": int(event.Signal),
				"panic":  fmt.Sprint(rec),
			})
			panic(rec)
		}
	}()
	r.Dispatch(event)
}

// RunForever enters the event loop and blocks until something stops it
// (Stop, or the loop's own Stop), then runs the shutdown sequence.
func (fw *Framework) RunForever() error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return ErrFrameworkRunning
	}
	fw.running = true
	fw.mu.Unlock()

	fw.publishLifecycle(EventTypeFrameworkStart, nil)
	fw.loop.RunForever()

	fw.mu.Lock()
	fw.running = false
	fw.mu.Unlock()
	return fw.shutdown()
}

// Stop requests framework shutdown. If the event loop is running, the
// actual stop is deferred onto the loop so it happens on the loop's own
// goroutine; RunForever then performs the shutdown sequence once the loop
// returns. If the loop isn't running (common in unit tests that drive run()
// directly), shutdown happens synchronously.
func (fw *Framework) Stop() error {
	fw.mu.Lock()
	running := fw.running
	stopped := fw.stopped
	fw.mu.Unlock()
	if stopped {
		return ErrFrameworkStopped
	}
	if running {
		fw.loop.DeferSoon(fw.loop.Stop)
		return nil
	}
	return fw.shutdown()
}

// shutdown cancels any pending timer callback, posts SIGTERM to every
// registered active object, runs them to completion so EXIT handlers fire,
// and emits the stop lifecycle event. It is idempotent.
func (fw *Framework) shutdown() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	registry := append([]Runnable(nil), fw.aoRegistry...)
	fw.mu.Unlock()

	fw.timers.cancelPending()
	for _, r := range registry {
		if err := r.PostFIFO(TermEvent); err != nil {
			fw.logger.Warn("SIGTERM dropped, mailbox full", "ao", r.Name(), "error", err)
		}
	}
	fw.run()
	for _, r := range registry {
		fw.publishLifecycle(EventTypeAOStopped, map[string]any{"name": r.Name(), "priority": r.Priority()})
	}
	fw.publishLifecycle(EventTypeFrameworkStop, nil)
	return nil
}

func (fw *Framework) publishLifecycle(eventType string, data map[string]any) {
	event := lifecycleEvent(fw.source, eventType, data)
	if err := fw.pub.Publish(context.Background(), event); err != nil {
		fw.logger.Warn("lifecycle event publish failed", "type", eventType, "error", err)
	}
}
