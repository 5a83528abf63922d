package grid

import (
	"context"
	"sync/atomic"

	"go-looper/debug"
	"go-looper/looper"
)

// Engine is the part of the looper engine the grid drives and reads.
type Engine interface {
	Seek(loop, offset int) bool
	LoopRegion(loop, start, end int) bool
	GroupOff(group int) bool
	PatternButton(slot int, shift bool) bool
	SetGroupVolume(group int, v float64) bool

	NumLoops() int
	NumGroups() int
	LoopInfo(i int) looper.LoopInfo
	LoopStatus(i int) looper.LoopStatus
	GroupActive(g int) int
	PatternStatus(slot int) (looper.PatternStatus, bool)
}

// Layout places the control row buttons. Loops fill the rows below it.
type Layout struct {
	Cols, Rows int
}

func (l Layout) PatternX(slot int) int { return l.Cols - 4 + slot }
func (l Layout) ShiftX() int           { return l.Cols - 2 }
func (l Layout) MetaX() int            { return l.Cols - 1 }

// Controller turns grid events into engine commands.
type Controller struct {
	eng    Engine
	layout Layout

	rowLoop []int // grid row -> loop index, -1 if none
	held    []heldCell

	shift atomic.Bool
	meta  atomic.Bool
	muted []bool
}

type heldCell struct {
	cell looper.Cell
	down bool
}

func NewController(eng Engine, layout Layout) *Controller {
	c := &Controller{
		eng:     eng,
		layout:  layout,
		rowLoop: make([]int, layout.Rows),
		held:    make([]heldCell, eng.NumLoops()),
		muted:   make([]bool, eng.NumGroups()),
	}
	for i := range c.rowLoop {
		c.rowLoop[i] = -1
	}
	for i := 0; i < eng.NumLoops(); i++ {
		info := eng.LoopInfo(i)
		for r := 0; r < info.Rows; r++ {
			y := info.Row + 1 + r
			if y < layout.Rows {
				c.rowLoop[y] = i
			}
		}
	}
	return c
}

// Shift reports whether the shift button is held.
func (c *Controller) Shift() bool { return c.shift.Load() }

// Meta reports whether the meta button is held.
func (c *Controller) Meta() bool { return c.meta.Load() }

// LoopAt returns the loop shown on grid row y, or -1.
func (c *Controller) LoopAt(y int) int {
	if y < 0 || y >= len(c.rowLoop) {
		return -1
	}
	return c.rowLoop[y]
}

// Run handles events until ctx is done or the channel closes.
func (c *Controller) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Handle(ev)
		}
	}
}

func (c *Controller) Handle(ev Event) {
	if ev.X < 0 || ev.X >= c.layout.Cols || ev.Y < 0 || ev.Y >= c.layout.Rows {
		return
	}
	if ev.Y == 0 {
		c.handleControl(ev)
		return
	}
	c.handleLoop(ev)
}

func (c *Controller) handleControl(ev Event) {
	x := ev.X
	switch {
	case x == c.layout.ShiftX():
		c.shift.Store(ev.Pressed)
		return
	case x == c.layout.MetaX():
		c.meta.Store(ev.Pressed)
		return
	}

	if !ev.Pressed {
		return
	}

	for slot := 0; slot < looper.PatternSlots; slot++ {
		if x == c.layout.PatternX(slot) {
			debug.Log("grid", "pattern %d shift=%v", slot, c.Shift())
			c.eng.PatternButton(slot, c.Shift())
			return
		}
	}

	if x < c.eng.NumGroups() {
		if c.Meta() {
			c.muted[x] = !c.muted[x]
			v := 1.0
			if c.muted[x] {
				v = 0
			}
			debug.Log("grid", "group %d volume %v", x, v)
			c.eng.SetGroupVolume(x, v)
			return
		}
		c.eng.GroupOff(x)
	}
}

func (c *Controller) handleLoop(ev Event) {
	i := c.rowLoop[ev.Y]
	if i < 0 {
		return
	}
	info := c.eng.LoopInfo(i)
	cols := info.Columns
	if cols <= 0 || cols > c.layout.Cols {
		cols = c.layout.Cols
	}
	if ev.X >= cols {
		return
	}
	cell := looper.Cell{X: ev.X, Y: ev.Y - 1 - info.Row}
	h := &c.held[i]

	if !ev.Pressed {
		if h.down && h.cell == cell {
			h.down = false
		}
		return
	}

	if h.down && h.cell != cell {
		start, end := looper.CellRegion(info.Frames, h.cell, cell, info.Rows, cols)
		debug.Log("grid", "loop %d region [%d, %d)", i, start, end)
		c.eng.LoopRegion(i, start, end)
		return
	}

	h.cell = cell
	h.down = true
	offset := looper.GridToPosition(info.Frames, cell.X, cell.Y, info.Rows, cols, info.Reverse)
	c.eng.Seek(i, offset)
}
