package qpgo

// maxHSMDepth bounds state-hierarchy nesting. Probing past this depth
// indicates a cyclic or malformed parent chain.
const maxHSMDepth = 32

// Handler is a state's event processor. It reports its verdict as a
// RetCode; to report a parent (SUPER) or a transition target (TRAN) it
// calls ao.Super or ao.Tran, which record the result on the active object
// before returning.
type Handler[E any] func(ao *ActiveObject[E], event Event) RetCode

// State is a node in an active object's state hierarchy. States are
// compared by pointer identity, since Go function values are not
// comparable and the dispatch/init algorithms need to test state equality
// (e.g. to detect the LCA or a self-transition).
type State[E any] struct {
	name    string
	handler Handler[E]
}

// NewState constructs a named state backed by handler. name is used only
// for diagnostics (logging, panics); it plays no role in dispatch.
func NewState[E any](name string, handler Handler[E]) *State[E] {
	return &State[E]{name: name, handler: handler}
}

// Name returns the state's diagnostic name.
func (s *State[E]) Name() string { return s.name }

// Top is the implicit root handler. It ignores every signal except
// SigTerm, which it handles so that shutdown propagates cleanly without
// ever reporting IGNORED.
func Top[E any](ao *ActiveObject[E], event Event) RetCode {
	if event.Signal == SigTerm {
		return ao.Handled()
	}
	return ao.Ignored()
}

// trig sends event to whatever state currently sits in ao.state, returning
// its RetCode. Handlers that call ao.Super mutate ao.state as a side
// effect, so repeated calls to trig walk the parent chain one hop at a
// time — this is the EMPTY-probing mechanism the dispatch and init
// algorithms use to discover parents dynamically.
func trig[E any](ao *ActiveObject[E], event Event) RetCode {
	return ao.state.handler(ao, event)
}

func sendEntry[E any](ao *ActiveObject[E], s *State[E]) {
	if rc := s.handler(ao, entryEvent); rc != Handled {
		contractViolation("dispatch", "ENTRY handler for "+s.name+" must return Handled, got "+rc.String())
	}
}

func sendExit[E any](ao *ActiveObject[E], s *State[E]) {
	rc := s.handler(ao, exitEvent)
	if rc != Handled && rc != Super {
		contractViolation("dispatch", "EXIT handler for "+s.name+" must return Handled or Super, got "+rc.String())
	}
}

// drillToTarget builds the path from ao.state (the just-transitioned-to
// target) up to bound by EMPTY-probing, restores ao.state to the target,
// then sends ENTRY outer-to-inner along that path. It returns the target,
// which becomes the new upper bound for a subsequent nested-init step.
func drillToTarget[E any](ao *ActiveObject[E], bound *State[E]) *State[E] {
	target := ao.state
	path := []*State[E]{target}
	trig(ao, emptyEvent)
	for ao.state != bound {
		path = append(path, ao.state)
		if len(path) >= maxHSMDepth {
			contractViolation("init", "state nesting exceeds maximum depth")
		}
		trig(ao, emptyEvent)
	}
	ao.state = target
	for i := len(path) - 1; i >= 0; i-- {
		sendEntry(ao, path[i])
	}
	return target
}

// settleInit drives nested initial transitions starting at t: it sends
// INIT to t, and as long as the handler responds TRAN (moving ao.state
// deeper), drills to the new target and tries again. It returns once INIT
// fails to transition, leaving ao.state at the deepest initialized leaf.
func settleInit[E any](ao *ActiveObject[E], t *State[E]) {
	for {
		rc := t.handler(ao, initEvent)
		if rc != Tran {
			ao.state = t
			return
		}
		t = drillToTarget(ao, t)
	}
}

// Init performs the initial transition: it requires ao.state == Top (the
// active object's own TOP instance) and ao.initial set, invokes initial,
// and drills down to the innermost leaf, firing ENTRY outer-to-inner and
// settling any nested INIT transitions along the way.
func Init[E any](ao *ActiveObject[E], event Event) {
	if ao.state != ao.top {
		contractViolation("init", "state must be TOP before init")
	}
	if rc := ao.initial.handler(ao, event); rc != Tran {
		contractViolation("init", "initial state handler must return Tran")
	}
	t := drillToTarget(ao, ao.top)
	settleInit(ao, t)
}

// ancestryPath returns the full chain [from, parent(from), ..., TOP],
// inclusive of both ends, discovered by EMPTY-probing. ao.state is saved
// and restored around the probe.
func ancestryPath[E any](ao *ActiveObject[E], from *State[E]) []*State[E] {
	saved := ao.state
	ao.state = from
	path := []*State[E]{from}
	for ao.state != ao.top {
		trig(ao, emptyEvent)
		path = append(path, ao.state)
		if len(path) > maxHSMDepth {
			contractViolation("dispatch", "state nesting exceeds maximum depth")
		}
	}
	ao.state = saved
	return path
}

// doTransition performs the exit/entry sequence for a transition from s0
// to target, including the self-transition edge case, then settles any
// nested INIT.
func doTransition[E any](ao *ActiveObject[E], s0, target *State[E]) {
	if s0 == target {
		sendExit(ao, s0)
		sendEntry(ao, target)
		ao.state = target
		settleInit(ao, target)
		return
	}

	exitPath := ancestryPath(ao, s0)
	entryPath := ancestryPath(ao, target)

	// Both paths end at TOP. Walk from the tail inward to find the LCA:
	// the deepest state appearing in both.
	i := len(exitPath) - 1
	j := len(entryPath) - 1
	for i >= 0 && j >= 0 && exitPath[i] == entryPath[j] {
		i--
		j--
	}

	for _, s := range exitPath[:i+1] {
		sendExit(ao, s)
	}
	entrySeq := entryPath[:j+1]
	for k := len(entrySeq) - 1; k >= 0; k-- {
		sendEntry(ao, entrySeq[k])
	}

	ao.state = target
	settleInit(ao, target)
}

// Dispatch processes one event against ao's current state, walking up the
// parent chain via SUPER until a state handles or ignores it, or requests
// a transition, then performs the corresponding exit/entry sequence.
func Dispatch[E any](ao *ActiveObject[E], event Event) {
	s0 := ao.state
	var rc RetCode
	depth := 0
	for {
		rc = ao.state.handler(ao, event)
		if rc != Super {
			break
		}
		depth++
		if depth > maxHSMDepth {
			contractViolation("dispatch", "state nesting exceeds maximum depth")
		}
	}

	switch rc {
	case Handled, Ignored:
		ao.state = s0
	case Tran:
		target := ao.state
		doTransition(ao, s0, target)
	default:
		contractViolation("dispatch", "handler returned invalid RetCode")
	}
}
