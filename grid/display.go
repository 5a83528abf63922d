package grid

import (
	"context"
	"sync"
	"time"

	"go-looper/debug"
	"go-looper/looper"
)

// DefaultRefresh is the LED refresh rate in Hz.
const DefaultRefresh = 80

// Display pushes engine state to the device LEDs at a fixed rate, sending
// only rows that changed since the last flush. It keeps rendering with no
// device attached so the terminal mirror stays live.
type Display struct {
	eng    Engine
	ctrl   *Controller
	layout Layout
	rate   time.Duration

	mu    sync.Mutex
	dev   Device
	prev  []uint16
	force bool
	frame int

	// Stats reports engine counters; the audio goroutine cannot log.
	Stats func() looper.Stats
	last  looper.Stats
}

func NewDisplay(eng Engine, ctrl *Controller, dev Device, layout Layout, hz int) *Display {
	if hz <= 0 {
		hz = DefaultRefresh
	}
	return &Display{
		eng:    eng,
		ctrl:   ctrl,
		dev:    dev,
		layout: layout,
		rate:   time.Second / time.Duration(hz),
		prev:   make([]uint16, layout.Rows),
		force:  true,
	}
}

// Run refreshes until ctx is done, then clears the grid.
func (d *Display) Run(ctx context.Context) {
	ticker := time.NewTicker(d.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			if d.dev != nil {
				d.dev.Clear()
			}
			d.mu.Unlock()
			return
		case <-ticker.C:
			d.Flush()
			d.logStats()
		}
	}
}

// SetDevice swaps the attached device; nil detaches it.
func (d *Display) SetDevice(dev Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dev = dev
	d.force = true
}

// Invalidate forces every row out on the next flush.
func (d *Display) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.force = true
}

// Rows copies the most recently rendered rows into dst.
func (d *Display) Rows(dst []uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.prev)
}

// Render computes the LED rows for the current engine state.
func (d *Display) Render(rows []uint16) {
	clear(rows)
	d.frame++

	// control row
	var top uint16
	for g := 0; g < d.eng.NumGroups() && g < d.layout.Cols; g++ {
		if d.eng.GroupActive(g) >= 0 {
			top |= 1 << g
		}
	}
	for slot := 0; slot < looper.PatternSlots; slot++ {
		st, bound := d.eng.PatternStatus(slot)
		on := false
		switch {
		case st == looper.PatternRecording:
			on = d.frame/8%2 == 0 // blink
		case st == looper.PatternActive:
			on = true
		case bound:
			on = d.frame/32%2 == 0 // slow blink while queued or stopped
		}
		if on {
			top |= 1 << d.layout.PatternX(slot)
		}
	}
	if d.ctrl != nil && d.ctrl.Shift() {
		top |= 1 << d.layout.ShiftX()
	}
	if d.ctrl != nil && d.ctrl.Meta() {
		top |= 1 << d.layout.MetaX()
	}
	rows[0] = top

	for i := 0; i < d.eng.NumLoops(); i++ {
		st := d.eng.LoopStatus(i)
		if !st.State.Audible() {
			continue
		}
		info := d.eng.LoopInfo(i)
		cols := info.Columns
		if cols <= 0 || cols > d.layout.Cols {
			cols = d.layout.Cols
		}
		cell := looper.PositionToGrid(info.Frames, st.Position, info.Rows, cols)
		y := info.Row + 1 + cell.Y
		if y < len(rows) {
			rows[y] |= 1 << cell.X
		}
	}
}

// Flush renders and sends the rows that changed.
func (d *Display) Flush() {
	rows := make([]uint16, d.layout.Rows)
	d.Render(rows)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		copy(d.prev, rows)
		return
	}
	sent := 0
	for y, mask := range rows {
		if !d.force && d.prev[y] == mask {
			continue
		}
		if err := d.dev.SetRow(y, mask); err != nil {
			debug.Log("led", "row %d: %v", y, err)
			continue
		}
		d.prev[y] = mask
		sent++
	}
	d.force = false

	if sent > 0 {
		debug.LogEvery(100, "led", "flush rows=%d", sent)
	}
}

func (d *Display) logStats() {
	if d.Stats == nil {
		return
	}
	s := d.Stats()
	if s.Dropped != d.last.Dropped {
		debug.Log("engine", "dropped %d commands (queue full)", s.Dropped-d.last.Dropped)
	}
	if s.Heals != d.last.Heals {
		debug.Log("engine", "pattern recording pointer was stale, cleared (%d)", s.Heals)
	}
	if s.Overflows != d.last.Overflows {
		debug.Log("engine", "pattern full, %d steps lost", s.Overflows-d.last.Overflows)
	}
	d.last = s
}
