package looper

import (
	"math"
	"sync/atomic"
)

// LoopStatus is what display goroutines see of a loop.
type LoopStatus struct {
	State    State
	Position int
	Length   int
	Looping  bool
	Start    int
	End      int
}

// Stats are engine counters.
type Stats struct {
	Frames    uint64 // output frames rendered
	Dropped   uint64 // commands rejected by a full queue
	Heals     uint64 // pattern invariant violations repaired
	Overflows uint64 // steps lost to a full pattern
}

type loopView struct {
	state   atomic.Int32
	pos     atomic.Int64
	length  atomic.Int64
	start   atomic.Int64
	end     atomic.Int64
	looping atomic.Bool
}

type patternView struct {
	status atomic.Int32
	bound  atomic.Bool
	steps  atomic.Int32
}

// snapshot is written by the engine once per block and read by anyone.
type snapshot struct {
	loops    []loopView
	groups   []atomic.Int32
	patterns [PatternSlots]patternView

	bpm      atomic.Uint64
	quantize atomic.Uint64

	frames    atomic.Uint64
	dropped   atomic.Uint64
	heals     atomic.Uint64
	overflows atomic.Uint64
}

func (s *snapshot) init(loops, groups int) {
	s.loops = make([]loopView, loops)
	s.groups = make([]atomic.Int32, groups)
}

func (e *Engine) publish() {
	s := &e.snap
	for i := range e.loops {
		l := &e.loops[i]
		v := &s.loops[i]
		v.state.Store(int32(l.state))
		v.pos.Store(int64(l.Position()))
		v.length.Store(int64(l.Len()))
		v.start.Store(int64(l.loopStart))
		v.end.Store(int64(l.loopEnd))
		v.looping.Store(l.looping)
	}
	for i := range e.groups {
		s.groups[i].Store(int32(e.groups[i].active))
	}
	for i := range e.patterns {
		p := &e.patterns[i]
		s.patterns[i].status.Store(int32(p.status))
		s.patterns[i].bound.Store(p.bound)
		s.patterns[i].steps.Store(int32(p.n))
	}
	s.bpm.Store(math.Float64bits(e.clock.BPM()))
	s.quantize.Store(math.Float64bits(e.clock.Multiplier()))
}

// LoopStatus returns the last published state of loop i.
func (e *Engine) LoopStatus(i int) LoopStatus {
	v := &e.snap.loops[i]
	return LoopStatus{
		State:    State(v.state.Load()),
		Position: int(v.pos.Load()),
		Length:   int(v.length.Load()),
		Looping:  v.looping.Load(),
		Start:    int(v.start.Load()),
		End:      int(v.end.Load()),
	}
}

// GroupActive returns the published active loop of group g, or -1.
func (e *Engine) GroupActive(g int) int {
	return int(e.snap.groups[g].Load())
}

// PatternStatus returns the published status of a pattern slot and whether
// the slot's control is bound.
func (e *Engine) PatternStatus(slot int) (PatternStatus, bool) {
	v := &e.snap.patterns[slot]
	return PatternStatus(v.status.Load()), v.bound.Load()
}

// PatternSteps returns the published step count of a pattern slot.
func (e *Engine) PatternSteps(slot int) int {
	return int(e.snap.patterns[slot].steps.Load())
}

func (e *Engine) BPM() float64 {
	return math.Float64frombits(e.snap.bpm.Load())
}

func (e *Engine) Quantize() float64 {
	return math.Float64frombits(e.snap.quantize.Load())
}

func (e *Engine) Stats() Stats {
	return Stats{
		Frames:    e.snap.frames.Load(),
		Dropped:   e.snap.dropped.Load(),
		Heals:     e.snap.heals.Load(),
		Overflows: e.snap.overflows.Load(),
	}
}
