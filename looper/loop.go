package looper

import "github.com/pkg/errors"

// State is the playback state of a loop. Pending states are committed by the
// engine on the next quantization boundary.
type State int32

const (
	Inactive State = iota
	Active
	PendingActivate
	PendingDeactivate
	PendingReseek
	PendingLoopEnable
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case PendingActivate:
		return "pending-activate"
	case PendingDeactivate:
		return "pending-deactivate"
	case PendingReseek:
		return "pending-reseek"
	case PendingLoopEnable:
		return "pending-loop-enable"
	}
	return "unknown"
}

// Audible reports whether a loop in this state produces sound. A loop waiting
// to be deactivated keeps playing until the boundary.
func (s State) Audible() bool {
	switch s {
	case Active, PendingDeactivate, PendingReseek, PendingLoopEnable:
		return true
	}
	return false
}

// LoopConfig describes one loop handed to NewEngine.
type LoopConfig struct {
	Name string

	// Data holds interleaved samples, Channels values per frame.
	Data       []float32
	Channels   int
	SampleRate int

	Group   int
	Row     int // first grid row, counted below the control row
	Rows    int
	Columns int

	Reverse bool
	Speed   float64
	Volume  float64
}

// Loop is a decoded buffer with a play cursor. All fields are owned by the
// engine goroutine once the engine is running.
type Loop struct {
	Name string

	data       []float32
	channels   int
	frames     int
	sampleRate int

	// cursor is relative to the region start when looping.
	cursor    int
	looping   bool
	loopStart int
	loopEnd   int

	Reverse bool
	Speed   float64
	Volume  float64

	state     State
	newOffset int
	queuedLo  int
	queuedHi  int

	group int

	Row     int
	Rows    int
	Columns int

	resampler Resampler
	ratio     float64
}

func newLoop(c LoopConfig) (Loop, error) {
	if c.Channels < 1 {
		return Loop{}, errors.Errorf("loop %q: invalid channel count %d", c.Name, c.Channels)
	}
	frames := len(c.Data) / c.Channels
	if frames == 0 {
		return Loop{}, errors.Errorf("loop %q: no audio data", c.Name)
	}
	if c.Rows < 1 {
		c.Rows = 1
	}
	if c.Speed <= 0 {
		c.Speed = 1
	}

	return Loop{
		Name:       c.Name,
		data:       c.Data,
		channels:   c.Channels,
		frames:     frames,
		sampleRate: c.SampleRate,
		Reverse:    c.Reverse,
		Speed:      c.Speed,
		Volume:     c.Volume,
		group:      c.Group,
		Row:        c.Row,
		Rows:       c.Rows,
		Columns:    c.Columns,
	}, nil
}

func (l *Loop) State() State { return l.state }
func (l *Loop) Group() int   { return l.group }
func (l *Loop) Frames() int  { return l.frames }

// Len is the effective length: the sub-loop length when looping, else the
// whole buffer.
func (l *Loop) Len() int {
	if l.looping {
		return l.loopEnd - l.loopStart
	}
	return l.frames
}

// Position is the absolute frame under the cursor.
func (l *Loop) Position() int {
	if l.looping {
		return l.loopStart + l.cursor
	}
	return l.cursor
}

// Region returns the sub-loop bounds and whether looping is enabled.
func (l *Loop) Region() (start, end int, ok bool) {
	return l.loopStart, l.loopEnd, l.looping
}

// Advance moves the cursor by delta frames in the play direction.
func (l *Loop) Advance(delta int) {
	if l.Reverse {
		delta = -delta
	}
	l.setCursor(l.cursor + delta)
}

func (l *Loop) setCursor(p int) {
	n := l.Len()
	if n <= 0 {
		l.cursor = 0
		return
	}
	p %= n
	if p < 0 {
		p += n
	}
	l.cursor = p
}

// seek drops any sub-loop and moves the cursor to an absolute frame. A
// reverse loop starts on the frame below offset.
func (l *Loop) seek(offset int) {
	if l.frames == 0 {
		return
	}
	l.looping = false
	if l.Reverse {
		offset--
	}
	l.setCursor(offset)
	if l.resampler != nil {
		l.resampler.Reset()
	}
}

func (l *Loop) enableRegion(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > l.frames {
		end = l.frames
	}
	if end <= start {
		return
	}
	l.looping = true
	l.loopStart = start
	l.loopEnd = end
	if l.Reverse {
		l.cursor = end - start - 1
	} else {
		l.cursor = 0
	}
	if l.resampler != nil {
		l.resampler.Reset()
	}
}

// frame reads the frame under the cursor; mono is duplicated, extra channels
// are ignored.
func (l *Loop) frame() (float64, float64) {
	i := l.Position() * l.channels
	left := float64(l.data[i])
	if l.channels == 1 {
		return left, left
	}
	return left, float64(l.data[i+1])
}

// Pull returns the current frame and advances by one. It feeds resamplers.
func (l *Loop) Pull() (float64, float64) {
	left, right := l.frame()
	l.Advance(1)
	return left, right
}

// render produces one output frame and advances the loop.
func (l *Loop) render() (float64, float64) {
	if l.resampler != nil {
		return l.resampler.Next(l.ratio, l)
	}
	return l.Pull()
}
