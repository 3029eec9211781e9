package uvloop

// Prepare is a handle whose callback runs once per tick, right before the
// I/O poll (spec §4.1 step 5 / §6 uv_prepare_t equivalent). Typically used
// by libraries that need to flush buffered state immediately before the
// loop might block.
type Prepare struct {
	*Handle
	cb func(p *Prepare)
}

// NewPrepare allocates a Prepare handle bound to loop.
func NewPrepare(loop *Loop) *Prepare {
	p := &Prepare{Handle: &Handle{}}
	initHandle(loop, p.Handle, HandlePrepare, nil)
	p.fireFn = p.fire
	return p
}

// Start arms the handle; cb runs on every tick until Stop or Close.
func (p *Prepare) Start(cb func(p *Prepare)) error {
	if p.IsClosing() {
		return ErrHandleClosing
	}
	p.cb = cb
	p.startHandle()
	p.loop.prepareHandles.pushBack(p.Handle)
	return nil
}

// Stop disarms the handle.
func (p *Prepare) Stop() error {
	p.stopHandle()
	p.loop.prepareHandles.remove(p.Handle)
	return nil
}

func (p *Prepare) fire() {
	if p.cb != nil {
		p.cb(p)
	}
}
