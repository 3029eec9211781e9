package uvloop

// Idle is a handle whose callback runs once per tick while it is active,
// after the pending callbacks and before the prepare watchers (spec §4.1
// step 4 / §6 uv_idle_t equivalent). Because an active Idle
// handle always has pending work, it also forces the poll timeout to zero
// — the classic libuv trick for running a callback "as soon as possible,
// but after I/O has a chance to be serviced" without starving the loop.
type Idle struct {
	*Handle
	cb func(i *Idle)
}

// NewIdle allocates an Idle handle bound to loop.
func NewIdle(loop *Loop) *Idle {
	i := &Idle{Handle: &Handle{}}
	initHandle(loop, i.Handle, HandleIdle, nil)
	i.fireFn = i.fire
	return i
}

// Start arms the handle.
func (i *Idle) Start(cb func(i *Idle)) error {
	if i.IsClosing() {
		return ErrHandleClosing
	}
	i.cb = cb
	i.startHandle()
	i.loop.idleHandles.pushBack(i.Handle)
	return nil
}

// Stop disarms the handle.
func (i *Idle) Stop() error {
	i.stopHandle()
	i.loop.idleHandles.remove(i.Handle)
	return nil
}

func (i *Idle) fire() {
	if i.cb != nil {
		i.cb(i)
	}
}
