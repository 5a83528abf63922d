package looper

import (
	"sync"
	"sync/atomic"
)

// Op identifies an input command.
type Op uint8

const (
	OpSeek Op = iota + 1
	OpLoopRegion
	OpGroupOff
	OpPatternButton
	OpSetBPM
	OpSetQuantize
	OpSetMasterVolume
	OpSetGroupVolume
)

// Command is a fixed-size intent message from an input goroutine to the
// engine.
type Command struct {
	Op   Op
	A, B int
	C    int
	F    float64
}

const queueSize = 1024 // power of two

// queue is a bounded multi-producer, single-consumer ring. Producers take mu
// among themselves; the consumer only does atomic loads and stores.
type queue struct {
	mu   sync.Mutex
	buf  [queueSize]Command
	head atomic.Uint64
	tail atomic.Uint64
}

func (q *queue) push(c Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := q.tail.Load()
	if t-q.head.Load() >= queueSize {
		return false
	}
	q.buf[t&(queueSize-1)] = c
	q.tail.Store(t + 1)
	return true
}

func (q *queue) pop() (Command, bool) {
	h := q.head.Load()
	if h == q.tail.Load() {
		return Command{}, false
	}
	c := q.buf[h&(queueSize-1)]
	q.head.Store(h + 1)
	return c, true
}
