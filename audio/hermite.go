package audio

import (
	"github.com/cwbudde/algo-dsp/dsp/interp"

	"go-looper/looper"
)

// Hermite is a pull resampler using 4-point cubic Hermite interpolation. It
// keeps a four frame window and slides it forward as the phase passes whole
// source frames.
type Hermite struct {
	win    [4][2]float64
	phase  float64
	primed bool
}

func NewHermite() *Hermite {
	return &Hermite{}
}

func (h *Hermite) push(l, r float64) {
	h.win[0] = h.win[1]
	h.win[1] = h.win[2]
	h.win[2] = h.win[3]
	h.win[3] = [2]float64{l, r}
}

// Next returns one output frame. ratio is source frames per output frame.
func (h *Hermite) Next(ratio float64, src looper.FrameSource) (float64, float64) {
	if !h.primed {
		l, r := src.Pull()
		h.win[0] = [2]float64{l, r}
		h.win[1] = [2]float64{l, r}
		h.win[2] = pair(src.Pull())
		h.win[3] = pair(src.Pull())
		h.phase = 0
		h.primed = true
	}

	for h.phase >= 1 {
		h.push(src.Pull())
		h.phase--
	}

	t := h.phase
	l := interp.Hermite4(t, h.win[0][0], h.win[1][0], h.win[2][0], h.win[3][0])
	r := interp.Hermite4(t, h.win[0][1], h.win[1][1], h.win[2][1], h.win[3][1])

	h.phase += ratio
	return l, r
}

// Reset drops the window so the next call starts from the source's current
// position.
func (h *Hermite) Reset() {
	h.primed = false
	h.phase = 0
}

func pair(l, r float64) [2]float64 { return [2]float64{l, r} }

// Resampler returns a constructor usable as looper.Options.NewResampler.
func Resampler() func() looper.Resampler {
	return func() looper.Resampler { return NewHermite() }
}
