// Package engine runs the audio render loop.
//
// The Engine is the context shared by every goroutine: the clock, the
// tracks, the event queue, the retire queue, the sample bank and the output
// device. One goroutine runs Run. It is the only consumer of the event queue
// and the only producer of the retire queue, it never blocks except while
// waiting for the device, and it never closes a sample. Any number of
// goroutines may Push events, and one goroutine drains retired samples with
// Reclaim or RunReclaimer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/queue"
	"github.com/icco/pocketseq/internal/sample"
)

const (
	DefaultBufferFrames   = 512
	DefaultEventCapacity  = 256
	DefaultRetireCapacity = 32

	// maxCatchUp bounds the steps played in one iteration after a stall.
	// Steps beyond it are skipped.
	maxCatchUp = 256

	// maxPending is the number of samples kept back while the retire queue
	// is full.
	maxPending = 64
)

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	BufferFrames   int
	EventCapacity  int
	RetireCapacity int
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BufferFrames <= 0 {
		o.BufferFrames = DefaultBufferFrames
	}
	if o.EventCapacity < 2 {
		o.EventCapacity = DefaultEventCapacity
	}
	if o.RetireCapacity < 2 {
		o.RetireCapacity = DefaultRetireCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Snapshot is a copy of the engine state for display.
type Snapshot struct {
	Clock   clock.Snapshot
	Tracks  []TrackState
	Queued  int
	Dropped uint64
}

// Engine is the audio render loop and the state it shares with the control
// goroutines.
type Engine struct {
	log    *slog.Logger
	opts   Options
	clock  *clock.Clock
	bank   *sample.Bank
	dev    hw.Device
	tracks []*Track
	events *event.Queue
	retire *queue.SPSC[*sample.Sample]

	pending  [maxPending]*sample.Sample
	npending int

	wake chan struct{}
	exit atomic.Bool

	dropped atomic.Uint64
	lost    atomic.Uint64
}

// New builds an engine with one track per spec. Track i plays on device
// channel i.
func New(dev hw.Device, clk *clock.Clock, bank *sample.Bank, specs []TrackSpec, opts Options) (*Engine, error) {
	if len(specs) == 0 {
		return nil, ErrNoTracks
	}
	if len(specs) > dev.Channels() {
		return nil, fmt.Errorf("%d tracks on %d channels: %w", len(specs), dev.Channels(), ErrChannels)
	}
	opts = opts.withDefaults()

	e := &Engine{
		log:    opts.Logger,
		opts:   opts,
		clock:  clk,
		bank:   bank,
		dev:    dev,
		events: event.NewQueue(opts.EventCapacity),
		retire: queue.NewSPSC[*sample.Sample](opts.RetireCapacity),
		wake:   make(chan struct{}, 1),
	}
	for i, spec := range specs {
		t := newTrack(i, spec, dev.SampleRate(), opts.BufferFrames, bank)
		dev.SetMix(i, t.gainL, t.gainR)
		e.tracks = append(e.tracks, t)
	}
	dev.SetCallback(e.signal)
	return e, nil
}

// signal wakes the render loop. Repeated signals before the loop wakes
// collapse into one.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Push queues an event for the audio goroutine. It returns false when the
// queue is full and the event was dropped.
func (e *Engine) Push(ev event.Event) bool {
	if !e.events.Push(ev) {
		return false
	}
	e.signal()
	return true
}

func (e *Engine) Clock() *clock.Clock { return e.clock }

func (e *Engine) Bank() *sample.Bank { return e.bank }

func (e *Engine) Device() hw.Device { return e.dev }

func (e *Engine) Tracks() []*Track { return e.tracks }

func (e *Engine) Track(i int) *Track {
	if i < 0 || i >= len(e.tracks) {
		return nil
	}
	return e.tracks[i]
}

// Dropped returns the number of sequencer triggers lost to a full event
// queue.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Snapshot copies the display state of the clock and every track.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Clock:   e.clock.Snapshot(),
		Tracks:  make([]TrackState, len(e.tracks)),
		Queued:  e.events.Len(),
		Dropped: e.dropped.Load(),
	}
	for i, t := range e.tracks {
		s.Tracks[i] = t.State()
	}
	return s
}

// Run executes the render loop on the calling goroutine, locked to its OS
// thread, until Close is called or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.log.Info("audio loop started",
		"tracks", len(e.tracks),
		"sample_rate", e.dev.SampleRate(),
		"buffer_frames", e.opts.BufferFrames)

	for !e.exit.Load() {
		e.Iterate()
		select {
		case <-e.wake:
		case <-ctx.Done():
			e.exit.Store(true)
		}
	}

	e.shutdown()
	e.log.Info("audio loop stopped", "dropped_triggers", e.dropped.Load())
	return nil
}

// Close asks the render loop to exit and wakes it.
func (e *Engine) Close() {
	e.exit.Store(true)
	e.signal()
}

// Iterate runs one pass of the render loop without waiting for the device.
func (e *Engine) Iterate() {
	e.tick()
	e.drain()
	e.retryRetire()
	for _, t := range e.tracks {
		e.refill(t)
	}
	for _, t := range e.tracks {
		if t.filterDirty {
			e.dev.SetFilter(t.id, t.live.Filter, float32(t.live.Cutoff), float32(t.live.Q))
			t.filterDirty = false
		}
	}
}

// tick plays the steps that came due since the previous iteration. Tracks
// with an active step queue a trigger carrying a copy of its parameters.
func (e *Engine) tick() {
	e.clock.Lock()
	n := min(e.clock.Advance(), maxCatchUp)
	var first int64
	for i := range n {
		idx := e.clock.Step()
		if i == 0 {
			first = idx
		}
	}
	e.clock.Unlock()

	if n == 0 {
		return
	}
	soloing := e.soloing()
	for idx := first; idx < first+int64(n); idx++ {
		for _, t := range e.tracks {
			p, ok := t.advance(idx)
			if !ok || !t.audible(soloing) {
				continue
			}
			if !e.events.Push(event.Trigger(t.id, p)) {
				e.dropped.Add(1)
			}
		}
	}
}

func (e *Engine) soloing() bool {
	for _, t := range e.tracks {
		if t.solo.Load() {
			return true
		}
	}
	return false
}

// drain applies queued events. It stops after one queue's worth so that
// producers cannot keep the loop busy.
func (e *Engine) drain() {
	var ev event.Event
	for i := 0; i < e.events.Cap() && e.events.Pop(&ev); i++ {
		e.apply(&ev)
	}
}

func (e *Engine) apply(ev *event.Event) {
	switch ev.Type {
	case event.StartClock:
		e.resetSequencers()
		e.clock.Lock()
		e.clock.Start()
		e.clock.Unlock()
	case event.StopClock:
		e.clock.Lock()
		e.clock.Stop()
		e.clock.Unlock()
		for _, t := range e.tracks {
			t.release()
		}
		e.resetSequencers()
	case event.PauseClock:
		e.clock.Lock()
		e.clock.Pause()
		e.clock.Unlock()
	case event.ResumeClock:
		e.clock.Lock()
		e.clock.Resume()
		e.clock.Unlock()
	case event.SetBPM:
		e.clock.Lock()
		e.clock.SetBPM(ev.Value)
		e.clock.Unlock()
	case event.SetBeatsPerBar:
		e.clock.Lock()
		e.clock.SetBeatsPerBar(ev.Int())
		e.clock.Unlock()
	case event.ResetSequencers:
		e.resetSequencers()
	case event.SwapSample:
		e.swapSample(ev.Track, ev.Sample)
	default:
		e.applyTrack(ev)
	}
}

func (e *Engine) applyTrack(ev *event.Event) {
	t := e.Track(ev.Track)
	if t == nil {
		return
	}
	switch ev.Type {
	case event.TriggerStep:
		if t.trigger(ev.Params) {
			e.dev.SetMix(t.id, t.gainL, t.gainR)
		}
	case event.UpdateStep:
		t.mu.Lock()
		t.seq.Set(ev.Step, ev.Params)
		t.mu.Unlock()
	case event.ToggleStep:
		t.mu.Lock()
		t.seq.Toggle(ev.Step)
		t.mu.Unlock()
	case event.SetStepActive:
		t.mu.Lock()
		t.seq.SetActive(ev.Step, ev.Flag())
		t.mu.Unlock()
	case event.ResizeSequencer:
		t.mu.Lock()
		t.seq.Resize(ev.Int())
		t.mu.Unlock()
	case event.SetStepsPerBeat:
		t.mu.Lock()
		t.seq.SetStepsPerBeat(ev.Int())
		t.mu.Unlock()
	case event.SetMute:
		t.muted.Store(ev.Flag())
	case event.SetSolo:
		t.solo.Store(ev.Flag())
	}
}

func (e *Engine) resetSequencers() {
	for _, t := range e.tracks {
		t.mu.Lock()
		t.seq.Reset()
		t.mu.Unlock()
	}
}

// swapSample installs s in slot and retires the previous sample. Samplers
// still playing the old sample stop first.
func (e *Engine) swapSample(slot int, s *sample.Sample) {
	old, err := e.bank.Swap(slot, s)
	if err != nil {
		e.retireSample(s)
		return
	}
	if old == nil {
		return
	}
	for _, t := range e.tracks {
		t.sampler.Detach(old)
	}
	e.retireSample(old)
}

// retireSample drops the audio goroutine's reference to s. A sample that
// cannot be queued for closing is kept and retried on later iterations.
func (e *Engine) retireSample(s *sample.Sample) {
	if s == nil || s.ReleaseDeferred(e.retire) {
		return
	}
	if e.npending == len(e.pending) {
		e.lost.Add(1)
		return
	}
	e.pending[e.npending] = s
	e.npending++
}

func (e *Engine) retryRetire() {
	kept := 0
	for i := 0; i < e.npending; i++ {
		s := e.pending[i]
		e.pending[i] = nil
		if !s.ReleaseDeferred(e.retire) {
			e.pending[kept] = s
			kept++
		}
	}
	e.npending = kept
}

// refill renders into every wavebuf of t that the device has finished with
// and queues it again.
func (e *Engine) refill(t *Track) {
	for range t.bufs {
		b := t.bufs[t.fill]
		if !b.Ready() {
			return
		}
		t.voice.Render(b.Frames)
		if !e.dev.Submit(t.id, b) {
			return
		}
		t.fill ^= 1
	}
}

// shutdown runs on the audio goroutine after the loop exits. Real-time
// rules no longer apply, so leftover samples are released directly.
func (e *Engine) shutdown() {
	for _, t := range e.tracks {
		t.voice.Stop()
	}
	for i := 0; i < e.npending; i++ {
		if err := e.pending[i].Release(); err != nil {
			e.log.Warn("release pending sample", "error", err)
		}
		e.pending[i] = nil
	}
	e.npending = 0

	var ev event.Event
	for e.events.Pop(&ev) {
		if ev.Type == event.SwapSample && ev.Sample != nil {
			if err := ev.Sample.Release(); err != nil {
				e.log.Warn("release queued sample", "path", ev.Sample.Path(), "error", err)
			}
		}
	}
	if n := e.lost.Load(); n > 0 {
		e.log.Warn("samples never retired", "count", n)
	}
}
