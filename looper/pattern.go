package looper

// PatternStatus is the lifecycle state of a pattern.
type PatternStatus int32

const (
	PatternInactive PatternStatus = iota
	PatternRecording
	PatternQueued
	PatternActive
)

func (s PatternStatus) String() string {
	switch s {
	case PatternInactive:
		return "inactive"
	case PatternRecording:
		return "recording"
	case PatternQueued:
		return "queued"
	case PatternActive:
		return "active"
	}
	return "unknown"
}

// StepCommand is what a recorded step does when replayed.
type StepCommand uint8

const (
	CmdGroupDeactivate StepCommand = iota
	CmdLoopSeek
)

// Step is one recorded command. Delay is the number of ticks until the next
// step fires.
type Step struct {
	Loop  int
	Cmd   StepCommand
	Arg   int
	Delay int
}

// MaxSteps bounds a pattern so recording never allocates.
const MaxSteps = 256

// Pattern is a recorded gesture sequence replayed on quantization ticks.
type Pattern struct {
	steps [MaxSteps]Step
	n     int

	cursor  int
	counter int
	status  PatternStatus
	bound   bool

	// budget counts down ticks left in a recording once the first step
	// lands; zero means unlimited.
	budget int
	length int
}

type stepApplier interface {
	applyStep(s Step)
}

func (p *Pattern) Status() PatternStatus { return p.status }
func (p *Pattern) Bound() bool           { return p.bound }
func (p *Pattern) Len() int              { return p.n }

// Steps returns the recorded steps. The slice aliases the pattern storage.
func (p *Pattern) Steps() []Step { return p.steps[:p.n] }

// startRecording binds the pattern and clears any previous steps. length is
// the recording budget in ticks, 0 for none.
func (p *Pattern) startRecording(length int) {
	*p = Pattern{}
	p.bound = true
	p.status = PatternRecording
	p.length = length
}

// record appends a step, or overwrites the previous one when it targets the
// same loop on the same tick. It reports false when the pattern is full.
func (p *Pattern) record(loop int, cmd StepCommand, arg int) bool {
	if p.n > 0 {
		last := &p.steps[p.n-1]
		if last.Loop == loop && last.Delay == 0 {
			last.Cmd = cmd
			last.Arg = arg
			return true
		}
	}
	if p.n == MaxSteps {
		return false
	}
	if p.n == 0 {
		p.budget = p.length
	}
	p.steps[p.n] = Step{Loop: loop, Cmd: cmd, Arg: arg}
	p.n++
	return true
}

// recordTick grows the last step's delay. It reports true when the recording
// budget is spent.
func (p *Pattern) recordTick() bool {
	if p.n == 0 {
		return false
	}
	p.steps[p.n-1].Delay++
	if p.budget > 0 {
		p.budget--
		return p.budget == 0
	}
	return false
}

// finalize ends a recording. An empty pattern is released and false is
// returned.
func (p *Pattern) finalize() bool {
	if p.n == 0 {
		p.reset()
		return false
	}
	p.status = PatternQueued
	return true
}

func (p *Pattern) reset() {
	p.n = 0
	p.cursor = 0
	p.counter = 0
	p.budget = 0
	p.status = PatternInactive
	p.bound = false
}

// tick runs one quantization boundary of replay.
func (p *Pattern) tick(a stepApplier) {
	switch p.status {
	case PatternQueued:
		p.status = PatternActive
		p.cursor = p.n - 1
		p.counter = p.steps[p.cursor].Delay
	case PatternActive:
	default:
		return
	}

	// Zero-delay steps fire on the same tick; n bounds the walk.
	for i := 0; i < p.n && p.counter >= p.steps[p.cursor].Delay; i++ {
		p.cursor++
		if p.cursor == p.n {
			p.cursor = 0
		}
		p.counter = 0
		a.applyStep(p.steps[p.cursor])
	}
	p.counter++
}
