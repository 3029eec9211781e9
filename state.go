package uvloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop's own lifecycle,
// distinct from a single handle's flag word (see handle.go) and from the
// RunMode passed to Run (see runmode.go).
//
// State machine:
//
//	StateAwake (0) -> StateRunning (3)    [Run() starts]
//	StateRunning (3) -> StateAwake (0)    [Run() returns]
//	any -> StateTerminated (1)            [Close()]
//	StateTerminated (1) -> (terminal)
//
// StateSleeping and StateTerminating are defined but the Loop never enters
// them. Use TryTransition (CAS) for the reversible states (Awake/Running);
// use Store for the one-way Terminated transition. Storing Running
// directly breaks the CAS invariants relied on elsewhere.
type LoopState uint64

const (
	// StateAwake indicates the loop is not inside Run (before the first Run or between Runs).
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has fully stopped; no further ticks occur.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked in the I/O backend's poll call.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively executing a tick.
	StateRunning LoopState = 3
	// StateTerminating indicates Stop/Close was called but shutdown hasn't completed.
	StateTerminating LoopState = 4
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state machine with cache-line padding, to avoid
// false sharing between the loop goroutine and other goroutines reading or
// updating the state concurrently.
type atomicState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newAtomicState(initial LoopState) *atomicState {
	s := &atomicState{}
	s.v.Store(uint64(initial))
	return s
}

func (s *atomicState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *atomicState) Store(state LoopState) { s.v.Store(uint64(state)) }

// TryTransition attempts an atomic CAS from `from` to `to`.
func (s *atomicState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *atomicState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
