package grid

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-looper/looper"
)

// --- Fakes ---

type call struct {
	op      string
	a, b, c int
	f       float64
	shift   bool
}

type fakeEngine struct {
	loops    []looper.LoopInfo
	status   []looper.LoopStatus
	active   []int
	patterns [looper.PatternSlots]looper.PatternStatus
	bound    [looper.PatternSlots]bool
	calls    []call
}

func (e *fakeEngine) Seek(loop, offset int) bool {
	e.calls = append(e.calls, call{op: "seek", a: loop, b: offset})
	return true
}

func (e *fakeEngine) LoopRegion(loop, start, end int) bool {
	e.calls = append(e.calls, call{op: "region", a: loop, b: start, c: end})
	return true
}

func (e *fakeEngine) GroupOff(group int) bool {
	e.calls = append(e.calls, call{op: "off", a: group})
	return true
}

func (e *fakeEngine) PatternButton(slot int, shift bool) bool {
	e.calls = append(e.calls, call{op: "pattern", a: slot, shift: shift})
	return true
}

func (e *fakeEngine) SetGroupVolume(group int, v float64) bool {
	e.calls = append(e.calls, call{op: "volume", a: group, f: v})
	return true
}

func (e *fakeEngine) NumLoops() int                      { return len(e.loops) }
func (e *fakeEngine) NumGroups() int                     { return len(e.active) }
func (e *fakeEngine) LoopInfo(i int) looper.LoopInfo     { return e.loops[i] }
func (e *fakeEngine) LoopStatus(i int) looper.LoopStatus { return e.status[i] }
func (e *fakeEngine) GroupActive(g int) int              { return e.active[g] }
func (e *fakeEngine) PatternStatus(s int) (looper.PatternStatus, bool) {
	return e.patterns[s], e.bound[s]
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loops: []looper.LoopInfo{
			{Name: "a", Group: 0, Row: 0, Rows: 1, Columns: 8, Frames: 800},
			{Name: "b", Group: 1, Row: 1, Rows: 2, Columns: 8, Frames: 1600, Reverse: true},
		},
		status: make([]looper.LoopStatus, 2),
		active: []int{-1, -1},
	}
}

type fakeDevice struct {
	mu     sync.Mutex
	rows   map[int]uint16
	writes int
	clears int
	events chan Event
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{rows: map[int]uint16{}, events: make(chan Event, 8)}
}

func (d *fakeDevice) ID() string           { return "fake" }
func (d *fakeDevice) Size() (int, int)     { return 8, 8 }
func (d *fakeDevice) Events() <-chan Event { return d.events }
func (d *fakeDevice) Close() error         { return nil }
func (d *fakeDevice) SetLED(x, y int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		d.rows[y] |= 1 << x
	} else {
		d.rows[y] &^= 1 << x
	}
	return nil
}

func (d *fakeDevice) SetRow(y int, mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows[y] = mask
	d.writes++
	return nil
}

func (d *fakeDevice) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = map[int]uint16{}
	d.clears++
	return nil
}

var layout = Layout{Cols: 8, Rows: 8}

// --- Controller ---

func TestPressSeeks(t *testing.T) {
	eng := newFakeEngine()
	c := NewController(eng, layout)

	c.Handle(Event{X: 3, Y: 1, Pressed: true})
	c.Handle(Event{X: 3, Y: 1})

	// loop b: second row of its two, reverse
	c.Handle(Event{X: 0, Y: 3, Pressed: true})

	want := []call{
		{op: "seek", a: 0, b: 300},
		{op: "seek", a: 1, b: 900},
	}
	if len(eng.calls) != len(want) {
		t.Fatalf("calls = %+v", eng.calls)
	}
	for i := range want {
		if eng.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, eng.calls[i], want[i])
		}
	}
}

func TestChordQueuesRegion(t *testing.T) {
	eng := newFakeEngine()
	c := NewController(eng, layout)

	c.Handle(Event{X: 5, Y: 1, Pressed: true})
	c.Handle(Event{X: 2, Y: 1, Pressed: true})
	c.Handle(Event{X: 2, Y: 1})
	c.Handle(Event{X: 5, Y: 1})
	c.Handle(Event{X: 1, Y: 1, Pressed: true}) // plain press again

	want := []call{
		{op: "seek", a: 0, b: 500},
		{op: "region", a: 0, b: 200, c: 600},
		{op: "seek", a: 0, b: 100},
	}
	if len(eng.calls) != len(want) {
		t.Fatalf("calls = %+v", eng.calls)
	}
	for i := range want {
		if eng.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, eng.calls[i], want[i])
		}
	}
}

func TestControlRow(t *testing.T) {
	eng := newFakeEngine()
	c := NewController(eng, layout)

	c.Handle(Event{X: 1, Y: 0, Pressed: true}) // group off
	c.Handle(Event{X: 4, Y: 0, Pressed: true}) // pattern 0
	c.Handle(Event{X: 6, Y: 0, Pressed: true}) // shift down
	c.Handle(Event{X: 5, Y: 0, Pressed: true}) // delete pattern 1
	c.Handle(Event{X: 6, Y: 0})                // shift up
	c.Handle(Event{X: 7, Y: 0, Pressed: true}) // meta down
	c.Handle(Event{X: 0, Y: 0, Pressed: true}) // mute group 0
	c.Handle(Event{X: 0, Y: 0, Pressed: true}) // unmute
	c.Handle(Event{X: 7, Y: 0})
	c.Handle(Event{X: 3, Y: 0, Pressed: true}) // no such group

	want := []call{
		{op: "off", a: 1},
		{op: "pattern", a: 0},
		{op: "pattern", a: 1, shift: true},
		{op: "volume", a: 0, f: 0},
		{op: "volume", a: 0, f: 1},
	}
	if len(eng.calls) != len(want) {
		t.Fatalf("calls = %+v", eng.calls)
	}
	for i := range want {
		if eng.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, eng.calls[i], want[i])
		}
	}
	if c.Shift() || c.Meta() {
		t.Error("modifiers still held")
	}
}

func TestOutOfRangeEventsIgnored(t *testing.T) {
	eng := newFakeEngine()
	c := NewController(eng, layout)

	c.Handle(Event{X: 9, Y: 1, Pressed: true})
	c.Handle(Event{X: 0, Y: 7, Pressed: true}) // no loop on this row
	c.Handle(Event{X: -1, Y: 0, Pressed: true})

	if len(eng.calls) != 0 {
		t.Fatalf("calls = %+v", eng.calls)
	}
	if c.LoopAt(2) != 1 || c.LoopAt(3) != 1 || c.LoopAt(4) != -1 {
		t.Errorf("row map = %v", c.rowLoop)
	}
}

func TestControllerRunStopsOnClose(t *testing.T) {
	eng := newFakeEngine()
	c := NewController(eng, layout)
	events := make(chan Event, 1)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), events)
		close(done)
	}()

	events <- Event{X: 0, Y: 1, Pressed: true}
	close(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if len(eng.calls) != 1 {
		t.Fatalf("calls = %+v", eng.calls)
	}
}

// --- Display ---

func TestRender(t *testing.T) {
	eng := newFakeEngine()
	eng.active = []int{0, -1}
	eng.status[0] = looper.LoopStatus{State: looper.Active, Position: 450, Length: 800}
	eng.status[1] = looper.LoopStatus{State: looper.PendingActivate, Position: 0, Length: 1600}
	eng.patterns[0] = looper.PatternActive
	eng.bound[0] = true

	d := NewDisplay(eng, nil, newFakeDevice(), layout, 0)
	rows := make([]uint16, layout.Rows)
	d.Render(rows)

	if rows[0] != 1|1<<4 {
		t.Errorf("control row = %08b", rows[0])
	}
	if rows[1] != 1<<4 {
		t.Errorf("loop a row = %08b, want cell 4", rows[1])
	}
	if rows[2] != 0 || rows[3] != 0 {
		t.Errorf("silent loop lit: %08b %08b", rows[2], rows[3])
	}

	// two-row loop, second row
	eng.status[1] = looper.LoopStatus{State: looper.Active, Position: 1500, Length: 1600}
	d.Render(rows)
	if rows[3] != 1<<7 {
		t.Errorf("loop b row 2 = %08b, want cell 7", rows[3])
	}
}

func TestFlushSendsChangedRows(t *testing.T) {
	eng := newFakeEngine()
	dev := newFakeDevice()
	d := NewDisplay(eng, nil, dev, layout, 0)

	d.Flush()
	if dev.writes != layout.Rows {
		t.Fatalf("first flush wrote %d rows, want all %d", dev.writes, layout.Rows)
	}

	d.Flush()
	if dev.writes != layout.Rows {
		t.Fatalf("unchanged flush wrote %d rows", dev.writes-layout.Rows)
	}

	eng.active[0] = 0
	eng.status[0] = looper.LoopStatus{State: looper.Active, Position: 0, Length: 800}
	d.Flush()
	if dev.writes != layout.Rows+2 {
		t.Fatalf("wrote %d rows, want 2", dev.writes-layout.Rows)
	}
	if dev.rows[0] != 1 || dev.rows[1] != 1 {
		t.Errorf("rows = %v", dev.rows)
	}

	d.Invalidate()
	d.Flush()
	if dev.writes != 2*layout.Rows+2 {
		t.Fatalf("invalidate did not resend all rows")
	}
}

func TestDisplayRunClearsOnStop(t *testing.T) {
	dev := newFakeDevice()
	d := NewDisplay(newFakeEngine(), nil, dev, layout, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.clears != 1 {
		t.Fatalf("clears = %d", dev.clears)
	}
}

func TestDisplayWithoutDevice(t *testing.T) {
	eng := newFakeEngine()
	eng.active[1] = 1
	eng.status[1] = looper.LoopStatus{State: looper.Active, Position: 0, Length: 1600}
	d := NewDisplay(eng, nil, nil, layout, 0)

	d.Flush()
	rows := make([]uint16, layout.Rows)
	d.Rows(rows)
	if rows[0] != 1<<1 || rows[2] != 1 {
		t.Fatalf("rows = %v", rows)
	}

	dev := newFakeDevice()
	d.SetDevice(dev)
	d.Flush()
	if dev.writes != layout.Rows {
		t.Errorf("attached device got %d rows, want all", dev.writes)
	}
}
