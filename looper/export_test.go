package looper

// Engine-owned state, read from the goroutine driving Stream.
func (e *Engine) Loop(i int) *Loop          { return &e.loops[i] }
func (e *Engine) Group(g int) *Group        { return &e.groups[g] }
func (e *Engine) Pattern(slot int) *Pattern { return &e.patterns[slot] }
func (e *Engine) Clock() *Clock             { return e.clock }
