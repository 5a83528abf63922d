package looper

import "github.com/pkg/errors"

// PatternSlots is the number of pattern recorders on the control row.
const PatternSlots = 2

// FrameSource yields one stereo frame per call.
type FrameSource interface {
	Pull() (float64, float64)
}

// Resampler produces one output frame per call, pulling as many source
// frames as the ratio needs. Reset drops interpolation history after a seek.
type Resampler interface {
	Next(ratio float64, src FrameSource) (float64, float64)
	Reset()
}

type Options struct {
	SampleRate   int
	BPM          float64
	Quantize     float64 // beats per tick
	Groups       int
	PatternBeats [PatternSlots]int
	MasterVolume float64

	// Block is the largest chunk processed between queue drains. Group
	// buffers are sized to it.
	Block int

	// NewResampler is called once for every loop whose speed or sample
	// rate differs from the output.
	NewResampler func() Resampler
}

const defaultBlock = 512

// Engine is the real-time mixer. Stream is called from the audio goroutine;
// every other exported method is safe from any goroutine.
type Engine struct {
	loops    []Loop
	groups   []Group
	patterns [PatternSlots]Pattern
	beats    [PatternSlots]int

	recording int
	clock     *Clock
	master    float64
	block     int

	q    queue
	snap snapshot
}

func NewEngine(opts Options, loops []LoopConfig) (*Engine, error) {
	if opts.SampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.BPM <= 0 {
		return nil, errors.Errorf("invalid bpm %v", opts.BPM)
	}
	if opts.Quantize <= 0 {
		return nil, errors.Errorf("invalid quantize %v", opts.Quantize)
	}
	if opts.Groups < 1 {
		return nil, errors.Errorf("invalid group count %d", opts.Groups)
	}
	if opts.Block <= 0 {
		opts.Block = defaultBlock
	}
	if opts.MasterVolume <= 0 {
		opts.MasterVolume = 1
	}

	e := &Engine{
		loops:     make([]Loop, 0, len(loops)),
		groups:    make([]Group, opts.Groups),
		beats:     opts.PatternBeats,
		recording: -1,
		clock:     NewClock(opts.BPM, opts.Quantize, opts.SampleRate),
		master:    opts.MasterVolume,
		block:     opts.Block,
	}
	for i := range e.groups {
		e.groups[i] = newGroup(i, opts.Block)
	}

	for _, c := range loops {
		if c.Group < 0 || c.Group >= opts.Groups {
			return nil, errors.Errorf("loop %q: group %d out of range", c.Name, c.Group)
		}
		if c.SampleRate <= 0 {
			c.SampleRate = opts.SampleRate
		}
		l, err := newLoop(c)
		if err != nil {
			return nil, err
		}
		l.ratio = float64(l.sampleRate) / float64(opts.SampleRate) * l.Speed
		if l.ratio != 1 {
			if opts.NewResampler == nil {
				return nil, errors.Errorf("loop %q: needs resampling but no resampler is set", c.Name)
			}
			l.resampler = opts.NewResampler()
		}
		e.loops = append(e.loops, l)
	}

	e.snap.init(len(e.loops), len(e.groups))
	e.clock.Prime()
	e.publish()
	return e, nil
}

// Stream renders samples. It satisfies beep.Streamer.
func (e *Engine) Stream(samples [][2]float64) (int, bool) {
	for off := 0; off < len(samples); off += e.block {
		end := off + e.block
		if end > len(samples) {
			end = len(samples)
		}
		e.process(samples[off:end])
	}
	return len(samples), true
}

func (e *Engine) Err() error { return nil }

func (e *Engine) process(out [][2]float64) {
	e.drain()

	n := len(out)
	for gi := range e.groups {
		clear(e.groups[gi].buf[:n])
	}

	for i := 0; i < n; i++ {
		boundary := e.clock.Tick()

		if boundary {
			for gi := range e.groups {
				e.groups[gi].commitStaged(e.loops)
			}
			for gi := range e.groups {
				e.commitPending(&e.groups[gi])
			}
		}

		for gi := range e.groups {
			g := &e.groups[gi]
			if g.active < 0 {
				continue
			}
			l := &e.loops[g.active]
			if !l.state.Audible() {
				continue
			}
			left, right := l.render()
			g.buf[i][0] += left * l.Volume
			g.buf[i][1] += right * l.Volume
		}

		if boundary {
			e.tickPatterns()
		}

		var left, right float64
		for gi := range e.groups {
			g := &e.groups[gi]
			left += g.buf[i][0] * g.Volume
			right += g.buf[i][1] * g.Volume
		}
		out[i] = [2]float64{left * e.master, right * e.master}
	}

	e.snap.frames.Add(uint64(n))
	e.publish()
}

// drain applies queued input. It runs at most one ring's worth of commands.
func (e *Engine) drain() {
	for i := 0; i < queueSize; i++ {
		c, ok := e.q.pop()
		if !ok {
			return
		}
		e.apply(c)
	}
}

func (e *Engine) apply(c Command) {
	switch c.Op {
	case OpSeek:
		if !e.validLoop(c.A) {
			return
		}
		e.record(c.A, CmdLoopSeek, c.B)
		e.queueSeek(c.A, c.B)

	case OpLoopRegion:
		if !e.validLoop(c.A) {
			return
		}
		e.queueRegion(c.A, c.B, c.C)

	case OpGroupOff:
		if c.A < 0 || c.A >= len(e.groups) {
			return
		}
		if i := e.groupOff(c.A); i >= 0 {
			e.record(i, CmdGroupDeactivate, 0)
		}

	case OpPatternButton:
		e.patternButton(c.A, c.B != 0)

	case OpSetBPM:
		e.clock.SetBPM(c.F)

	case OpSetQuantize:
		e.clock.SetMultiplier(c.F)

	case OpSetMasterVolume:
		e.master = c.F

	case OpSetGroupVolume:
		if c.A >= 0 && c.A < len(e.groups) {
			e.groups[c.A].Volume = c.F
		}
	}
}

func (e *Engine) validLoop(i int) bool {
	return i >= 0 && i < len(e.loops)
}

// queueSeek is shared by live input and pattern replay. A silent loop is
// moved now and staged for activation; an audible one waits for the
// boundary.
func (e *Engine) queueSeek(i, offset int) {
	l := &e.loops[i]
	if l.state.Audible() {
		l.newOffset = offset
		l.state = PendingReseek
		return
	}
	l.seek(offset)
	e.groups[l.group].stage(e.loops, i)
}

func (e *Engine) queueRegion(i, start, end int) {
	l := &e.loops[i]
	if start < 0 || end > l.frames || end <= start {
		return
	}
	if l.state.Audible() {
		l.queuedLo = start
		l.queuedHi = end
		l.state = PendingLoopEnable
		return
	}
	l.enableRegion(start, end)
	e.groups[l.group].stage(e.loops, i)
}

// groupOff drops a staged activation and queues the audible loop for
// release. It returns the released loop, or -1 when the group was silent.
func (e *Engine) groupOff(gi int) int {
	g := &e.groups[gi]
	if g.staged >= 0 {
		if e.loops[g.staged].state == PendingActivate {
			e.loops[g.staged].state = Inactive
		}
		g.staged = -1
	}
	if g.active < 0 || !e.loops[g.active].state.Audible() {
		return -1
	}
	e.loops[g.active].state = PendingDeactivate
	return g.active
}

func (e *Engine) commitPending(g *Group) {
	if g.active < 0 {
		return
	}
	l := &e.loops[g.active]
	switch l.state {
	case PendingDeactivate:
		g.Deactivate(e.loops, g.active)
	case PendingReseek:
		l.seek(l.newOffset)
		l.state = Active
	case PendingLoopEnable:
		l.enableRegion(l.queuedLo, l.queuedHi)
		l.state = Active
	}
}

func (e *Engine) applyStep(s Step) {
	if !e.validLoop(s.Loop) {
		return
	}
	switch s.Cmd {
	case CmdGroupDeactivate:
		e.groupOff(e.loops[s.Loop].group)
	case CmdLoopSeek:
		e.queueSeek(s.Loop, s.Arg)
	}
}

func (e *Engine) tickPatterns() {
	for i := range e.patterns {
		p := &e.patterns[i]
		if p.status == PatternRecording {
			if p.recordTick() {
				e.finishRecording(i)
			}
			continue
		}
		p.tick(e)
	}
}

// record adds a step to the pattern being recorded, if any.
func (e *Engine) record(loop int, cmd StepCommand, arg int) {
	if e.recording < 0 {
		return
	}
	p := &e.patterns[e.recording]
	if p.status != PatternRecording {
		e.snap.heals.Add(1)
		e.recording = -1
		return
	}
	if !p.record(loop, cmd, arg) {
		e.snap.overflows.Add(1)
	}
}

func (e *Engine) finishRecording(slot int) {
	if e.recording == slot {
		e.recording = -1
	}
	e.patterns[slot].finalize()
}

func (e *Engine) patternButton(slot int, shift bool) {
	if slot < 0 || slot >= PatternSlots {
		return
	}
	p := &e.patterns[slot]

	if shift {
		if e.recording == slot {
			e.recording = -1
		}
		p.reset()
		return
	}

	if !p.bound {
		if e.recording >= 0 {
			e.finishRecording(e.recording)
		}
		p.startRecording(e.beats[slot] * e.clock.TicksPerBeat())
		e.recording = slot
		return
	}

	switch p.status {
	case PatternRecording:
		if e.recording != slot {
			e.snap.heals.Add(1)
			if e.recording >= 0 && e.patterns[e.recording].status != PatternRecording {
				e.recording = -1
			}
		}
		e.finishRecording(slot)
	case PatternQueued, PatternInactive:
		p.status = PatternQueued
	case PatternActive:
		p.status = PatternInactive
	}
}

func (e *Engine) send(c Command) bool {
	if !e.q.push(c) {
		e.snap.dropped.Add(1)
		return false
	}
	return true
}

// Seek queues a jump of loop to offset, activating it on the next boundary
// if it is silent.
func (e *Engine) Seek(loop, offset int) bool {
	return e.send(Command{Op: OpSeek, A: loop, B: offset})
}

// LoopRegion queues a sub-loop over [start, end).
func (e *Engine) LoopRegion(loop, start, end int) bool {
	return e.send(Command{Op: OpLoopRegion, A: loop, B: start, C: end})
}

// GroupOff queues deactivation of the group's active loop.
func (e *Engine) GroupOff(group int) bool {
	return e.send(Command{Op: OpGroupOff, A: group})
}

// PatternButton presses a pattern recorder control. With shift the pattern
// is deleted.
func (e *Engine) PatternButton(slot int, shift bool) bool {
	c := Command{Op: OpPatternButton, A: slot}
	if shift {
		c.B = 1
	}
	return e.send(c)
}

func (e *Engine) SetBPM(bpm float64) bool {
	return e.send(Command{Op: OpSetBPM, F: bpm})
}

func (e *Engine) SetQuantize(m float64) bool {
	return e.send(Command{Op: OpSetQuantize, F: m})
}

func (e *Engine) SetMasterVolume(v float64) bool {
	return e.send(Command{Op: OpSetMasterVolume, F: v})
}

func (e *Engine) SetGroupVolume(group int, v float64) bool {
	return e.send(Command{Op: OpSetGroupVolume, A: group, F: v})
}

// LoopInfo is the static layout of a loop; it never changes after NewEngine.
type LoopInfo struct {
	Name    string
	Group   int
	Row     int
	Rows    int
	Columns int
	Frames  int
	Reverse bool
}

func (e *Engine) NumLoops() int  { return len(e.loops) }
func (e *Engine) NumGroups() int { return len(e.groups) }

func (e *Engine) LoopInfo(i int) LoopInfo {
	l := &e.loops[i]
	return LoopInfo{
		Name:    l.Name,
		Group:   l.group,
		Row:     l.Row,
		Rows:    l.Rows,
		Columns: l.Columns,
		Frames:  l.frames,
		Reverse: l.Reverse,
	}
}
