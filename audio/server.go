package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"
)

// Server owns the speaker. beep calls the played streamer from its own
// goroutine once per buffer.
type Server struct {
	mu         sync.Mutex
	rate       beep.SampleRate
	open       bool
	bufferSize int
}

// Open initializes the speaker. bufferFrames of 0 picks a 10ms buffer.
func Open(sampleRate, bufferFrames int) (*Server, error) {
	rate := beep.SampleRate(sampleRate)
	if bufferFrames <= 0 {
		bufferFrames = rate.N(10 * time.Millisecond)
	}

	if err := speaker.Init(rate, bufferFrames); err != nil {
		return nil, errors.Wrapf(err, "open audio output at %d Hz", sampleRate)
	}

	return &Server{rate: rate, open: true, bufferSize: bufferFrames}, nil
}

func (s *Server) SampleRate() int  { return int(s.rate) }
func (s *Server) BufferFrames() int { return s.bufferSize }

// Latency is the duration of one speaker buffer.
func (s *Server) Latency() time.Duration {
	return s.rate.D(s.bufferSize)
}

// Play starts streaming st alongside anything already playing.
func (s *Server) Play(st beep.Streamer) {
	speaker.Play(st)
}

// Close stops playback and releases the output device.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}
	speaker.Clear()
	speaker.Close()
	s.open = false
}
