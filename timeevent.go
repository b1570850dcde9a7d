package qpgo

import (
	"container/heap"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TimeEvent is a reusable, re-armable event descriptor bound to a signal
// and a target active object. interval == 0 means one-shot; interval > 0
// means periodic with that period; a non-nil cronExpr means the
// deadline is recomputed from a calendar expression each time it fires.
type TimeEvent struct {
	fw       *Framework
	signal   SignalID
	value    any
	target   Runnable
	interval time.Duration
	cronExpr cron.Schedule

	deadline time.Time
	armed    bool
	seq      uint64

	index int // heap.Interface bookkeeping
}

// NewTimeEvent constructs a TimeEvent bound to signalName (registered with
// fw.Signals if new) and target. It starts disarmed.
func NewTimeEvent(fw *Framework, signalName string, target Runnable, value any) *TimeEvent {
	return &TimeEvent{
		fw:     fw,
		signal: fw.Signals.Register(signalName),
		value:  value,
		target: target,
	}
}

// PostAt arms a one-shot firing at deadline.
func (te *TimeEvent) PostAt(deadline time.Time) {
	te.interval = 0
	te.cronExpr = nil
	te.fw.timers.arm(te, deadline)
}

// PostIn arms a one-shot firing delta from now.
func (te *TimeEvent) PostIn(delta time.Duration) {
	if delta < 0 {
		contractViolation("timeevent", "PostIn delta must be non-negative")
	}
	te.interval = 0
	te.cronExpr = nil
	te.fw.timers.arm(te, te.fw.loop.Now().Add(delta))
}

// PostEvery arms a periodic firing every delta, with the first firing delta
// from now.
func (te *TimeEvent) PostEvery(delta time.Duration) {
	if delta <= 0 {
		contractViolation("timeevent", "PostEvery delta must be positive")
	}
	te.interval = delta
	te.cronExpr = nil
	te.fw.timers.arm(te, te.fw.loop.Now().Add(delta))
}

// PostCron arms a calendar-based firing against a standard five-field cron
// expression; the deadline is recomputed from expr each time the event
// fires, so it behaves like PostEvery but on a calendar cadence instead of
// a fixed interval.
func (te *TimeEvent) PostCron(expr string) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return ErrInvalidCronExpr
	}
	te.interval = 0
	te.cronExpr = schedule
	te.fw.timers.arm(te, schedule.Next(te.fw.loop.Now()))
	return nil
}

// Disarm removes the event from the active schedule, cancelling the
// outstanding callback if this event owned it.
func (te *TimeEvent) Disarm() {
	te.fw.timers.disarm(te)
}

// timerQueue keeps time_events sorted by deadline ascending (ties broken by
// insertion order) and ensures at most one outstanding scheduled callback,
// always for the earliest deadline. It is implemented with container/heap
// for O(log n) insert/remove on large schedules, per the framework's own
// design note about timer data structures — no example repo in the
// retrieval pack ships a deadline-ordered priority queue, so this is the
// one structural piece built directly on the standard library.
type timerQueue struct {
	fw      *Framework
	mu      sync.Mutex
	items   timerHeap
	pending Cancelable
	nextSeq uint64
}

func newTimerQueue(fw *Framework) *timerQueue {
	return &timerQueue{fw: fw}
}

func (q *timerQueue) arm(te *TimeEvent, deadline time.Time) {
	if te.armed {
		q.disarm(te)
	}
	now := q.fw.loop.Now()
	if !deadline.After(now) {
		if err := q.fw.Post(Event{Signal: te.signal, Value: te.value}, te.target); err != nil {
			q.fw.logger.Warn("time event dropped, mailbox full", "target", te.target.Name(), "error", err)
		}
		if te.interval > 0 {
			q.insert(te, deadline.Add(te.interval))
		} else if te.cronExpr != nil {
			q.insert(te, te.cronExpr.Next(now))
		}
		return
	}
	q.insert(te, deadline)
}

func (q *timerQueue) insert(te *TimeEvent, deadline time.Time) {
	q.mu.Lock()
	te.deadline = deadline
	te.armed = true
	te.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.items, te)
	isHead := q.items[0] == te
	q.mu.Unlock()
	if isHead {
		q.rearm()
	}
}

func (q *timerQueue) disarm(te *TimeEvent) {
	q.mu.Lock()
	if !te.armed {
		q.mu.Unlock()
		return
	}
	wasHead := len(q.items) > 0 && q.items[0] == te
	heap.Remove(&q.items, te.index)
	te.armed = false
	q.mu.Unlock()
	if wasHead {
		q.rearm()
	}
}

// rearm cancels any pending callback and schedules a fresh one for the new
// head, or cancels outright if the schedule is now empty.
func (q *timerQueue) rearm() {
	q.mu.Lock()
	if q.pending != nil {
		q.pending.Cancel()
		q.pending = nil
	}
	var head *TimeEvent
	if len(q.items) > 0 {
		head = q.items[0]
	}
	q.mu.Unlock()
	if head == nil {
		return
	}
	deadline := head.deadline
	q.fw.logger.Debug("time event rearmed", "target", head.target.Name(), "deadline", deadline)
	q.mu.Lock()
	q.pending = q.fw.loop.ScheduleAt(deadline, q.fire)
	q.mu.Unlock()
}

// fire removes the head, posts it to its target, re-inserts it if periodic
// or calendar-based, arms a callback for the new head, and requests an RTC
// cycle.
func (q *timerQueue) fire() {
	q.mu.Lock()
	q.pending = nil
	if len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	te := heap.Pop(&q.items).(*TimeEvent)
	te.armed = false
	q.mu.Unlock()

	if err := q.fw.Post(Event{Signal: te.signal, Value: te.value}, te.target); err != nil {
		q.fw.logger.Warn("time event dropped, mailbox full", "target", te.target.Name(), "error", err)
	}
	q.fw.publishLifecycle(EventTypeTimeEventFired, map[string]any{"target": te.target.Name(), "signal": int(te.signal)})

	now := q.fw.loop.Now()
	switch {
	case te.cronExpr != nil:
		q.insert(te, te.cronExpr.Next(now))
	case te.interval > 0:
		q.insert(te, te.deadline.Add(te.interval))
	default:
		q.rearm()
	}
}

// cancelPending cancels the outstanding scheduled callback without
// touching the schedule itself. Called during framework shutdown.
func (q *timerQueue) cancelPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending != nil {
		q.pending.Cancel()
		q.pending = nil
	}
}

// timerHeap implements heap.Interface over *TimeEvent, ordered by deadline
// then insertion sequence so identically timed events fire FIFO.
type timerHeap []*TimeEvent

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	te := x.(*TimeEvent)
	te.index = len(*h)
	*h = append(*h, te)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	te := old[n-1]
	old[n-1] = nil
	te.index = -1
	*h = old[:n-1]
	return te
}
