package uvloop

// RunMode selects how Run drives the loop, mirroring original_source's
// uv_run_mode (src/unix/core.c) exactly: the three modes differ only in
// whether a tick blocks for I/O and whether Run loops until no work remains.
type RunMode int

const (
	// RunDefault runs the loop until no active, ref'd handle and no handle
	// mid-close keeps it alive (Loop.Alive). Requests submitted with
	// QueueWork do not keep it alive: Run can return while such work is
	// still in flight, before its after callback has run.
	RunDefault RunMode = iota
	// RunOnce polls for I/O once, then runs exactly one tick's worth of
	// callbacks, then returns — blocking in the poll if the loop is alive
	// and nothing is ready yet.
	RunOnce
	// RunNoWait is like RunOnce but never blocks: the I/O poll uses a
	// zero timeout, so Run returns immediately if nothing was ready.
	RunNoWait
)

func (m RunMode) String() string {
	switch m {
	case RunDefault:
		return "default"
	case RunOnce:
		return "once"
	case RunNoWait:
		return "nowait"
	default:
		return "unknown"
	}
}
