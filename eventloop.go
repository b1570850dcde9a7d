package qpgo

import (
	"sync"
	"time"
)

// Cancelable is a handle to a scheduled callback.
type Cancelable interface {
	Cancel()
}

// EventLoop is the narrow adapter the framework depends on for wall-clock
// time and cooperative scheduling. It plays the role the source's
// underlying asyncio loop plays: a monotonic clock, a one-shot deadline
// timer, a thread-safe "call soon" primitive, and a run/stop pair.
type EventLoop interface {
	Now() time.Time
	ScheduleAt(deadline time.Time, fn func()) Cancelable
	DeferSoon(fn func())
	RunForever()
	Stop()
	Close() error
}

// StdEventLoop is the default EventLoop. A single goroutine — whichever one
// calls RunForever — drains a task queue; DeferSoon is the only
// thread-safe entry point, the Go analogue of asyncio's
// call_soon_threadsafe. ScheduleAt is built on time.AfterFunc, but the
// fired callback is routed through DeferSoon rather than invoked directly,
// so timer firings never touch framework state from the timer goroutine.
type StdEventLoop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewStdEventLoop constructs a ready-to-run StdEventLoop.
func NewStdEventLoop() *StdEventLoop {
	return &StdEventLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Now returns the current wall-clock time.
func (l *StdEventLoop) Now() time.Time { return time.Now() }

// DeferSoon enqueues fn to run on the RunForever goroutine. Safe to call
// from any goroutine.
func (l *StdEventLoop) DeferSoon(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

type timerHandle struct{ timer *time.Timer }

func (h *timerHandle) Cancel() { h.timer.Stop() }

// ScheduleAt arms a one-shot timer for deadline; when it fires, fn is
// handed to DeferSoon rather than run on the timer's own goroutine.
func (l *StdEventLoop) ScheduleAt(deadline time.Time, fn func()) Cancelable {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, func() { l.DeferSoon(fn) })
	return &timerHandle{timer: t}
}

// RunForever drains the task queue until Stop is called. It is the single
// goroutine from which all framework and active-object state is touched.
func (l *StdEventLoop) RunForever() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			select {
			case <-l.wake:
				continue
			case <-l.done:
				return
			}
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}

// Stop causes a blocked or subsequent RunForever to return. Safe to call
// more than once.
func (l *StdEventLoop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Close releases any resources held by the loop. StdEventLoop holds none.
func (l *StdEventLoop) Close() error { return nil }
