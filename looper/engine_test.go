package looper

import (
	"math"
	"testing"
)

// --- Helpers ---

// snap of 4 frames, 10 ticks per beat
var fastOpts = Options{SampleRate: 40, BPM: 60, Quantize: 0.1, Groups: 1}

func constLoop(name string, group int, v float32, frames int) LoopConfig {
	data := make([]float32, frames)
	for i := range data {
		data[i] = v
	}
	return LoopConfig{Name: name, Data: data, Channels: 1, Group: group, Volume: 1, Rows: 1, Columns: 8}
}

func rampLoop(name string, group, frames int) LoopConfig {
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(i)
	}
	return LoopConfig{Name: name, Data: data, Channels: 1, Group: group, Volume: 1, Rows: 1, Columns: 8}
}

func newTestEngine(t *testing.T, opts Options, loops ...LoopConfig) *Engine {
	t.Helper()
	e, err := NewEngine(opts, loops)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func run(e *Engine, n int) [][2]float64 {
	buf := make([][2]float64, n)
	e.Stream(buf)
	return buf
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// --- Quantization ---

func TestActivationWaitsForBoundary(t *testing.T) {
	e := newTestEngine(t, Options{SampleRate: 48000, BPM: 120, Quantize: 1, Groups: 1},
		constLoop("a", 0, 0.5, 100))

	if e.Clock().Snap() != 24000 {
		t.Fatalf("snap = %d, want 24000", e.Clock().Snap())
	}

	run(e, 5)
	e.Seek(0, 0)

	out := run(e, 24000-5)
	if s := e.Loop(0).State(); s != PendingActivate {
		t.Fatalf("state before boundary = %s, want pending-activate", s)
	}
	for i, f := range out {
		if f != [2]float64{} {
			t.Fatalf("frame %d audible before the boundary: %v", i+5, f)
		}
	}

	out = run(e, 1)
	if s := e.Loop(0).State(); s != Active {
		t.Fatalf("state at frame 24000 = %s, want active", s)
	}
	if out[0] != [2]float64{0.5, 0.5} {
		t.Fatalf("frame 24000 = %v, want {0.5 0.5}", out[0])
	}
}

func TestSameEventLandsOnSameFrame(t *testing.T) {
	opts := fastOpts
	opts.Groups = 2
	e := newTestEngine(t, opts, constLoop("a", 0, 0.25, 50), constLoop("b", 1, 0.5, 50))

	run(e, 2)
	e.Seek(0, 0)
	e.Seek(1, 0)
	run(e, 1) // frame 2

	if e.Loop(0).State() != PendingActivate || e.Loop(1).State() != PendingActivate {
		t.Fatal("loops committed between boundaries")
	}
	run(e, 1) // frame 3
	out := run(e, 1)
	if e.Loop(0).State() != Active || e.Loop(1).State() != Active {
		t.Fatal("loops not committed on the boundary")
	}
	if !near(out[0][0], 0.75) {
		t.Fatalf("mix = %v, want 0.75", out[0][0])
	}
}

// --- Groups ---

func TestEngineGroupExclusivity(t *testing.T) {
	e := newTestEngine(t, fastOpts, constLoop("a", 0, 0.25, 50), constLoop("b", 0, 0.5, 50))

	e.Seek(0, 0)
	run(e, 1)
	if e.Loop(0).State() != Active {
		t.Fatalf("a = %s", e.Loop(0).State())
	}

	e.Seek(1, 0)
	out := run(e, 3)
	if e.Loop(1).State() != PendingActivate || out[2][0] != 0.25 {
		t.Fatalf("b = %s, out = %v", e.Loop(1).State(), out[2])
	}

	out = run(e, 1)
	if e.Loop(0).State() != Inactive || e.Loop(1).State() != Active {
		t.Fatalf("a = %s, b = %s", e.Loop(0).State(), e.Loop(1).State())
	}
	if e.Group(0).Active() != 1 {
		t.Fatalf("group active = %d", e.Group(0).Active())
	}
	if out[0][0] != 0.5 {
		t.Fatalf("out = %v", out[0])
	}
}

func TestGroupOff(t *testing.T) {
	e := newTestEngine(t, fastOpts, constLoop("a", 0, 0.25, 50))

	e.Seek(0, 0)
	run(e, 2)
	e.PatternButton(0, false)
	e.GroupOff(0)
	out := run(e, 2) // frames 2, 3
	if e.Loop(0).State() != PendingDeactivate || out[1][0] != 0.25 {
		t.Fatalf("state = %s out = %v", e.Loop(0).State(), out[1])
	}

	out = run(e, 1)
	if e.Loop(0).State() != Inactive || e.Group(0).Active() != -1 {
		t.Fatalf("state = %s active = %d", e.Loop(0).State(), e.Group(0).Active())
	}
	if out[0][0] != 0 {
		t.Fatalf("deactivated loop still audible: %v", out[0])
	}

	steps := e.Pattern(0).Steps()
	if len(steps) != 1 || steps[0].Cmd != CmdGroupDeactivate || steps[0].Loop != 0 {
		t.Fatalf("recorded %v", steps)
	}
}

func TestGroupOffCancelsStaged(t *testing.T) {
	e := newTestEngine(t, fastOpts, constLoop("a", 0, 0.25, 50))

	run(e, 1)
	e.Seek(0, 0)
	e.GroupOff(0)
	run(e, 4)
	if e.Loop(0).State() != Inactive {
		t.Fatalf("state = %s, want inactive", e.Loop(0).State())
	}
}

func TestReplayedGroupOffCancelsStaged(t *testing.T) {
	e := newTestEngine(t, fastOpts, constLoop("a", 0, 0.25, 50))

	run(e, 1)
	e.Seek(0, 0)
	run(e, 1)
	if e.Loop(0).State() != PendingActivate {
		t.Fatalf("state = %s, want pending-activate", e.Loop(0).State())
	}

	e.applyStep(Step{Loop: 0, Cmd: CmdGroupDeactivate})
	run(e, 4)
	if e.Loop(0).State() != Inactive || e.Group(0).Active() != -1 {
		t.Fatalf("state = %s active = %d", e.Loop(0).State(), e.Group(0).Active())
	}
}

// --- Mixing ---

func TestMixGroupsAndMaster(t *testing.T) {
	opts := fastOpts
	opts.Groups = 2
	opts.MasterVolume = 2

	stereo := LoopConfig{Name: "s", Data: []float32{0.1, 0.2, 0.1, 0.2}, Channels: 2, Group: 0, Volume: 1}
	e := newTestEngine(t, opts, stereo, constLoop("m", 1, 0.3, 4))

	e.SetGroupVolume(1, 0.5)
	e.Seek(0, 0)
	e.Seek(1, 0)
	out := run(e, 1)

	if !near(out[0][0], 0.5) || !near(out[0][1], 0.7) {
		t.Fatalf("out = %v, want {0.5 0.7}", out[0])
	}
}

func TestReversePlayback(t *testing.T) {
	cfg := rampLoop("r", 0, 16)
	cfg.Reverse = true
	e := newTestEngine(t, fastOpts, cfg)

	e.Seek(0, 8)
	out := run(e, 3)
	for i, want := range []float64{7, 6, 5} {
		if out[i][0] != want {
			t.Fatalf("frame %d = %v, want %v", i, out[i][0], want)
		}
	}
}

func TestLoopRegionCommitsOnBoundary(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("a", 0, 100))

	e.Seek(0, 0)
	run(e, 2)
	e.LoopRegion(0, 20, 24)
	out := run(e, 2) // frames 2, 3
	if e.Loop(0).State() != PendingLoopEnable || out[1][0] != 3 {
		t.Fatalf("state = %s out = %v", e.Loop(0).State(), out[1])
	}

	out = run(e, 6) // frames 4..9
	want := []float64{20, 21, 22, 23, 20, 21}
	for i := range want {
		if out[i][0] != want[i] {
			t.Fatalf("frame %d = %v, want %v", i+4, out[i][0], want[i])
		}
	}

	st := e.LoopStatus(0)
	if !st.Looping || st.Start != 20 || st.End != 24 || st.Length != 4 {
		t.Fatalf("status = %+v", st)
	}

	e.Seek(0, 50)
	run(e, 2) // frames 10, 11
	out = run(e, 1)
	if out[0][0] != 50 {
		t.Fatalf("after seek = %v, want 50", out[0][0])
	}
	if e.LoopStatus(0).Looping {
		t.Fatal("seek kept the sub-loop")
	}
}

func TestLoopRegionOnSilentLoop(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("a", 0, 100))

	run(e, 1)
	e.LoopRegion(0, 40, 60)
	run(e, 3)
	out := run(e, 1)
	if e.Loop(0).State() != Active || out[0][0] != 40 {
		t.Fatalf("state = %s out = %v", e.Loop(0).State(), out[0])
	}
}

type skipResampler struct{ resets int }

func (r *skipResampler) Next(ratio float64, src FrameSource) (float64, float64) {
	var l, rr float64
	for i := 0; i < int(ratio); i++ {
		l, rr = src.Pull()
	}
	return l, rr
}

func (r *skipResampler) Reset() { r.resets++ }

func TestResamplerPath(t *testing.T) {
	var rs *skipResampler
	opts := fastOpts
	opts.NewResampler = func() Resampler {
		rs = &skipResampler{}
		return rs
	}

	cfg := rampLoop("fast", 0, 100)
	cfg.Speed = 2
	e := newTestEngine(t, opts, cfg)

	e.Seek(0, 0)
	out := run(e, 3)
	for i, want := range []float64{1, 3, 5} {
		if out[i][0] != want {
			t.Fatalf("frame %d = %v, want %v", i, out[i][0], want)
		}
	}
	if rs.resets != 1 {
		t.Fatalf("resets = %d, want 1", rs.resets)
	}
}

func TestResamplerRequired(t *testing.T) {
	cfg := rampLoop("fast", 0, 100)
	cfg.SampleRate = 44100
	if _, err := NewEngine(Options{SampleRate: 48000, BPM: 120, Quantize: 1, Groups: 1}, []LoopConfig{cfg}); err == nil {
		t.Fatal("expected error without a resampler")
	}
}

// --- Patterns ---

func TestPatternRoundTrip(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 1)  // frame 0, first boundary
	run(e, 36) // frames 1..36, nine more boundaries
	e.Seek(0, 8)
	run(e, 20) // frames 37..56, five boundaries
	e.PatternButton(0, false)
	run(e, 1) // frame 57

	p := e.Pattern(0)
	steps := p.Steps()
	if len(steps) != 2 || steps[0].Delay != 10 || steps[1].Delay != 5 {
		t.Fatalf("steps = %+v, want delays {10, 5}", steps)
	}
	if p.Status() != PatternQueued {
		t.Fatalf("status = %s, want queued", p.Status())
	}

	type reseek struct{ frame, offset int }
	var got []reseek
	prev := e.Loop(0).State()
	for f := 58; f <= 200; f++ {
		run(e, 1)
		l := e.Loop(0)
		if l.State() == PendingReseek && prev != PendingReseek {
			got = append(got, reseek{f, l.newOffset})
		}
		prev = l.State()
	}

	want := []reseek{{60, 0}, {100, 8}, {120, 0}, {160, 8}, {180, 0}}
	if len(got) != len(want) {
		t.Fatalf("reseeks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reseek %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPatternEmptyRecordingUnbinds(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	run(e, 1)
	if st, bound := e.PatternStatus(0); st != PatternRecording || !bound {
		t.Fatalf("status = %s bound = %v", st, bound)
	}

	e.PatternButton(0, false)
	run(e, 1)
	if st, bound := e.PatternStatus(0); st != PatternInactive || bound {
		t.Fatalf("status = %s bound = %v", st, bound)
	}
}

func TestPatternCoalescingThroughEngine(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 10)
	e.Seek(0, 30)
	run(e, 1)

	steps := e.Pattern(0).Steps()
	if len(steps) != 1 || steps[0].Arg != 30 {
		t.Fatalf("steps = %+v", steps)
	}
}

func TestPatternButtonCycle(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 1)
	e.PatternButton(0, false)
	run(e, 1)

	want := []PatternStatus{PatternQueued, PatternActive, PatternInactive, PatternQueued}
	if st, _ := e.PatternStatus(0); st != want[0] {
		t.Fatalf("after stop: %s", st)
	}
	run(e, 4)
	if st, _ := e.PatternStatus(0); st != want[1] {
		t.Fatalf("after boundary: %s", st)
	}
	e.PatternButton(0, false)
	run(e, 1)
	if st, _ := e.PatternStatus(0); st != want[2] {
		t.Fatalf("after press: %s", st)
	}
	e.PatternButton(0, false)
	run(e, 1)
	if st, _ := e.PatternStatus(0); st != want[3] {
		t.Fatalf("after second press: %s", st)
	}
}

func TestPatternDeleteWhileRecording(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 1)
	e.PatternButton(0, true)
	run(e, 1)

	if e.recording != -1 {
		t.Fatalf("recording = %d after delete", e.recording)
	}
	if _, bound := e.PatternStatus(0); bound {
		t.Fatal("deleted pattern still bound")
	}

	e.Seek(0, 50)
	run(e, 1)
	if e.Pattern(0).Len() != 0 {
		t.Fatal("seek recorded into a deleted pattern")
	}
}

func TestNewRecordingPreemptsCurrent(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 1)
	e.PatternButton(1, false)
	run(e, 1)

	if st, _ := e.PatternStatus(0); st != PatternQueued {
		t.Fatalf("first pattern = %s, want queued", st)
	}
	if st, _ := e.PatternStatus(1); st != PatternRecording {
		t.Fatalf("second pattern = %s, want recording", st)
	}
	if e.recording != 1 {
		t.Fatalf("recording = %d", e.recording)
	}
}

func TestPatternRecordingBudgetFinalizes(t *testing.T) {
	opts := fastOpts
	opts.PatternBeats = [PatternSlots]int{1, 2}
	e := newTestEngine(t, opts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 1) // boundary 1 of 10
	run(e, 35)
	if st, _ := e.PatternStatus(0); st != PatternRecording {
		t.Fatalf("status after 9 ticks = %s", st)
	}
	run(e, 1) // frame 36, boundary 10
	if st, _ := e.PatternStatus(0); st != PatternQueued {
		t.Fatalf("status after 10 ticks = %s, want queued", st)
	}
	if e.recording != -1 {
		t.Fatalf("recording = %d", e.recording)
	}
}

func TestStaleRecordingHeals(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	run(e, 1) // past the first boundary

	p := e.Pattern(1)
	p.startRecording(0)
	p.record(0, CmdLoopSeek, 4)

	e.PatternButton(1, false)
	run(e, 1)

	if e.Stats().Heals != 1 {
		t.Fatalf("heals = %d, want 1", e.Stats().Heals)
	}
	if st, _ := e.PatternStatus(1); st != PatternQueued {
		t.Fatalf("status = %s, want queued", st)
	}
}

func TestBPMChangeKeepsRecordedTicks(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.PatternButton(0, false)
	e.Seek(0, 0)
	run(e, 8) // boundaries at 0 and 4
	e.SetBPM(120)
	run(e, 1) // frame 8 is a boundary under the new tempo

	if e.BPM() != 120 || e.Clock().Snap() != 2 {
		t.Fatalf("bpm = %v snap = %d", e.BPM(), e.Clock().Snap())
	}
	if d := e.Pattern(0).Steps()[0].Delay; d != 3 {
		t.Fatalf("delay = %d, want 3", d)
	}
}

// --- Queue and setup ---

func TestDroppedCommandsCounted(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	for i := 0; i < queueSize+3; i++ {
		e.Seek(0, i)
	}
	if got := e.Stats().Dropped; got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}

	run(e, 1)
	if e.Loop(0).State() != Active {
		t.Fatalf("state = %s", e.Loop(0).State())
	}
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		loops []LoopConfig
	}{
		{"bad rate", Options{BPM: 120, Quantize: 1, Groups: 1}, nil},
		{"bad bpm", Options{SampleRate: 48000, Quantize: 1, Groups: 1}, nil},
		{"no groups", Options{SampleRate: 48000, BPM: 120, Quantize: 1}, nil},
		{"group out of range", fastOpts, []LoopConfig{constLoop("a", 3, 1, 10)}},
		{"empty loop", fastOpts, []LoopConfig{{Name: "e", Channels: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.opts, tt.loops); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInvalidCommandsIgnored(t *testing.T) {
	e := newTestEngine(t, fastOpts, rampLoop("x", 0, 100))

	e.Seek(7, 0)
	e.Seek(-1, 0)
	e.GroupOff(4)
	e.PatternButton(9, false)
	e.LoopRegion(0, 50, 10)
	run(e, 4)

	if e.Loop(0).State() != Inactive {
		t.Fatalf("state = %s", e.Loop(0).State())
	}
}

func TestStreamChunksLargeBuffers(t *testing.T) {
	opts := fastOpts
	opts.Block = 3
	e := newTestEngine(t, opts, constLoop("a", 0, 0.5, 10))

	e.Seek(0, 0)
	n, ok := e.Stream(make([][2]float64, 10))
	if n != 10 || !ok {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	if e.Stats().Frames != 10 {
		t.Fatalf("frames = %d", e.Stats().Frames)
	}
}
