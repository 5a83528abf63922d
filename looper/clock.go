package looper

import "math"

// Clock counts output frames and fires a boundary every snap delay frames.
type Clock struct {
	bpm        float64
	multiplier float64
	sampleRate int

	snap   int
	frames int
}

// SnapDelay returns the number of frames per quantization tick.
func SnapDelay(bpm, multiplier float64, sampleRate int) int {
	if bpm <= 0 || multiplier <= 0 || sampleRate <= 0 {
		return 1
	}
	n := int(math.Round(60 / bpm * multiplier * float64(sampleRate)))
	if n < 1 {
		n = 1
	}
	return n
}

func NewClock(bpm, multiplier float64, sampleRate int) *Clock {
	c := &Clock{
		bpm:        bpm,
		multiplier: multiplier,
		sampleRate: sampleRate,
	}
	c.snap = SnapDelay(bpm, multiplier, sampleRate)
	return c
}

// Tick advances one frame and reports whether the frame is a boundary.
func (c *Clock) Tick() bool {
	c.frames++
	if c.frames >= c.snap {
		c.frames = 0
		return true
	}
	return false
}

// Prime makes the next Tick a boundary.
func (c *Clock) Prime() {
	c.frames = c.snap - 1
}

// SetBPM recomputes the snap delay. The running counter is clamped so the
// next boundary is never further away than one new tick.
func (c *Clock) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	c.bpm = bpm
	c.recompute()
}

func (c *Clock) SetMultiplier(m float64) {
	if m <= 0 {
		return
	}
	c.multiplier = m
	c.recompute()
}

func (c *Clock) recompute() {
	c.snap = SnapDelay(c.bpm, c.multiplier, c.sampleRate)
	if c.frames >= c.snap {
		c.frames = c.snap - 1
	}
}

func (c *Clock) BPM() float64        { return c.bpm }
func (c *Clock) Multiplier() float64 { return c.multiplier }
func (c *Clock) Snap() int           { return c.snap }
func (c *Clock) Frames() int         { return c.frames }

// TicksPerBeat is the number of boundaries in one beat, at least 1.
func (c *Clock) TicksPerBeat() int {
	n := int(math.Round(1 / c.multiplier))
	if n < 1 {
		n = 1
	}
	return n
}
