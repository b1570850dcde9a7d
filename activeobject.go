package qpgo

// Runnable is the framework-facing view of an ActiveObject[E], independent
// of its extended-state type. A Framework's registry, priority index, and
// subscriber table hold Runnables so a single Framework can schedule active
// objects with different extended-state types side by side.
type Runnable interface {
	Name() string
	Priority() int
	HasMessages() bool
	PopMessage() Event
	PostFIFO(event Event) error
	PostLIFO(event Event) error
	Dispatch(event Event)
}

// ActiveObject couples a hierarchical state machine to a FIFO mailbox and a
// scheduling priority. Ext carries the application's per-instance extended
// state (the fields the source keeps directly on the object), giving
// application code a typed struct instead of dynamic attributes.
type ActiveObject[E any] struct {
	name     string
	Ext      E
	priority int
	fw       *Framework

	top     *State[E]
	initial *State[E]
	state   *State[E]

	box *mailbox
}

// NewActiveObject constructs an active object named name, with extended
// state ext and initial state initial. priority is assigned by Start, not
// here, since an AO is not registered with a Framework until it starts.
// The mailbox starts unbounded; Start applies the owning Framework's
// configured MailboxCapacityHint unless SetMailboxCapacity was called first.
func NewActiveObject[E any](name string, ext E, initial *State[E]) *ActiveObject[E] {
	top := NewState[E]("TOP", Top[E])
	return &ActiveObject[E]{
		name:    name,
		Ext:     ext,
		top:     top,
		initial: initial,
		state:   top,
		box:     newMailbox(0),
	}
}

// SetMailboxCapacity bounds the mailbox at n events (0 means unbounded).
// Call before Start; it overrides the Framework's default capacity hint.
func (ao *ActiveObject[E]) SetMailboxCapacity(n int) {
	if n == 0 {
		// Stored as -1, which the mailbox also treats as unbounded, so that
		// Start sees an explicit choice and does not apply the hint over it.
		n = -1
	}
	ao.box.capacity = n
}

// Top returns this active object's TOP state, for application handlers
// that need to report it as a parent via Ao.Super.
func (ao *ActiveObject[E]) Top() *State[E] { return ao.top }

// Handled reports that the current handler consumed the event.
func (ao *ActiveObject[E]) Handled() RetCode { return Handled }

// Ignored reports that the current state has no interest in the event.
func (ao *ActiveObject[E]) Ignored() RetCode { return Ignored }

// Tran requests a transition to target.
func (ao *ActiveObject[E]) Tran(target *State[E]) RetCode {
	ao.state = target
	return Tran
}

// Super reports parent as the current state's parent.
func (ao *ActiveObject[E]) Super(parent *State[E]) RetCode {
	ao.state = parent
	return Super
}

// State returns the active object's current state.
func (ao *ActiveObject[E]) State() *State[E] { return ao.state }

// Name implements Runnable.
func (ao *ActiveObject[E]) Name() string { return ao.name }

// Priority implements Runnable.
func (ao *ActiveObject[E]) Priority() int { return ao.priority }

// HasMessages implements Runnable.
func (ao *ActiveObject[E]) HasMessages() bool { return ao.box.len() > 0 }

// PopMessage implements Runnable.
func (ao *ActiveObject[E]) PopMessage() Event { return ao.box.pop() }

// PostFIFO enqueues event at the tail of the mailbox: the next PopMessage
// after any already-queued events returns it. Returns ErrMailboxFull if the
// mailbox is bounded and already at capacity.
func (ao *ActiveObject[E]) PostFIFO(event Event) error { return ao.box.pushBack(event) }

// PostLIFO enqueues event at the head of the mailbox: the next PopMessage
// returns it immediately, ahead of anything already queued. Returns
// ErrMailboxFull if the mailbox is bounded and already at capacity.
func (ao *ActiveObject[E]) PostLIFO(event Event) error { return ao.box.pushFront(event) }

// Dispatch implements Runnable by running the HSM dispatch algorithm for
// one event.
func (ao *ActiveObject[E]) Dispatch(event Event) { Dispatch(ao, event) }

// Start assigns priority, registers the active object with fw (a duplicate
// priority is a contract violation, not a recoverable error), runs Init
// with initEvent, and requests an RTC cycle so the active object's
// transitive entry actions take effect promptly.
func (ao *ActiveObject[E]) Start(fw *Framework, priority int, initEvent Event) {
	if priority <= 0 {
		contractViolation("start", "priority must be positive")
	}
	ao.priority = priority
	ao.fw = fw
	if ao.box.capacity == 0 && fw.cfg.MailboxCapacityHint > 0 {
		ao.box.capacity = fw.cfg.MailboxCapacityHint
	}
	fw.register(ao)
	Init(ao, initEvent)
	fw.publishLifecycle(EventTypeAOStarted, map[string]any{"name": ao.name, "priority": priority})
	fw.requestRTC()
}
