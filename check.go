package uvloop

// Check is a handle whose callback runs once per tick, right after the I/O
// poll returns (spec §4.1 step 8 / §6 uv_check_t equivalent). Commonly
// paired with a Prepare handle to bracket the poll phase.
type Check struct {
	*Handle
	cb func(c *Check)
}

// NewCheck allocates a Check handle bound to loop.
func NewCheck(loop *Loop) *Check {
	c := &Check{Handle: &Handle{}}
	initHandle(loop, c.Handle, HandleCheck, nil)
	c.fireFn = c.fire
	return c
}

// Start arms the handle; cb runs on every tick until Stop or Close.
func (c *Check) Start(cb func(c *Check)) error {
	if c.IsClosing() {
		return ErrHandleClosing
	}
	c.cb = cb
	c.startHandle()
	c.loop.checkHandles.pushBack(c.Handle)
	return nil
}

// Stop disarms the handle.
func (c *Check) Stop() error {
	c.stopHandle()
	c.loop.checkHandles.remove(c.Handle)
	return nil
}

func (c *Check) fire() {
	if c.cb != nil {
		c.cb(c)
	}
}
