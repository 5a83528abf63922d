package looper

// Group is an exclusivity domain with its own stereo bus.
type Group struct {
	Index  int
	Volume float64

	active int
	staged int

	buf [][2]float64
}

func newGroup(index, block int) Group {
	return Group{
		Index:  index,
		Volume: 1,
		active: -1,
		staged: -1,
		buf:    make([][2]float64, block),
	}
}

// Active returns the index of the group's active loop, or -1.
func (g *Group) Active() int { return g.active }

// Activate makes loops[i] the group's active loop. A different audible loop
// is deactivated first. Activating the current loop does nothing.
func (g *Group) Activate(loops []Loop, i int) {
	if g.active == i {
		return
	}
	if g.active >= 0 {
		prev := &loops[g.active]
		if prev.state.Audible() {
			prev.state = Inactive
		}
	}
	g.active = i
	loops[i].state = Active
}

// Deactivate silences loops[i] and clears the group's active pointer if it
// refers to it.
func (g *Group) Deactivate(loops []Loop, i int) {
	if g.active != i {
		return
	}
	loops[i].state = Inactive
	g.active = -1
}

// stage records a loop waiting for the next boundary. A loop already staged
// in this group is dropped back to inactive.
func (g *Group) stage(loops []Loop, i int) {
	if g.staged >= 0 && g.staged != i && loops[g.staged].state == PendingActivate {
		loops[g.staged].state = Inactive
	}
	g.staged = i
	loops[i].state = PendingActivate
}

func (g *Group) commitStaged(loops []Loop) {
	if g.staged < 0 {
		return
	}
	i := g.staged
	g.staged = -1
	if loops[i].state == PendingActivate {
		g.Activate(loops, i)
	}
}
