package engine

import (
	"sync"
	"sync/atomic"

	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/sample"
	"github.com/icco/pocketseq/internal/sequencer"
	"github.com/icco/pocketseq/internal/voice"
)

// TrackSpec describes a track at startup.
type TrackSpec struct {
	Name         string
	Steps        int
	StepsPerBeat int
	// Params is copied into every step.
	Params instrument.TrackParameters
	// Active lists the steps that start switched on.
	Active []int
	// Overrides replaces Params on individual steps.
	Overrides map[int]instrument.TrackParameters
}

// StepInfo is a copy of one step for display.
type StepInfo struct {
	Active bool
	Params instrument.TrackParameters
}

// TrackState is a copy of a track's control state for display.
type TrackState struct {
	Name         string
	Kind         instrument.Kind
	Current      int
	StepsPerBeat int
	Muted        bool
	Solo         bool
	Steps        []StepInfo
}

// Track binds one sequencer to one device channel and its voices.
//
// The sequencer and the step parameters are guarded by mu, because the
// control goroutine reads them for display. Everything below the audio-only
// marker belongs to the audio goroutine and is never locked.
type Track struct {
	id   int
	name string
	kind instrument.Kind

	mu     sync.Mutex
	params [sequencer.MaxSteps]instrument.TrackParameters
	seq    *sequencer.Sequencer

	muted atomic.Bool
	solo  atomic.Bool

	// audio-only
	live        instrument.TrackParameters
	gainL       float32
	gainR       float32
	filterDirty bool
	bufs        [2]*hw.WaveBuf
	fill        int

	osc     *voice.Oscillator
	sampler *voice.Sampler
	fm      *voice.FM
	noise   *voice.Noise
	voice   voice.Voice
}

func newTrack(id int, spec TrackSpec, sampleRate, frames int, bank *sample.Bank) *Track {
	p := spec.Params.Clamped()
	t := &Track{
		id:      id,
		name:    spec.Name,
		kind:    p.Instrument.Kind(),
		osc:     voice.NewOscillator(sampleRate),
		sampler: voice.NewSampler(sampleRate, bank),
		fm:      voice.NewFM(sampleRate),
		noise:   voice.NewNoise(sampleRate),
		live:    p,
	}
	for i := range t.params {
		t.params[i] = p
		if o, ok := spec.Overrides[i]; ok {
			t.params[i] = o.Clamped()
		}
	}
	t.seq = sequencer.New(t.params[:], spec.Steps, spec.StepsPerBeat)
	for _, i := range spec.Active {
		t.seq.SetActive(i, true)
	}
	for i := range t.bufs {
		t.bufs[i] = hw.NewWaveBuf(frames)
	}
	t.voice = t.voiceFor(t.kind)
	t.gainL, t.gainR = p.Gains()
	t.filterDirty = true
	return t
}

func (t *Track) voiceFor(k instrument.Kind) voice.Voice {
	switch k {
	case instrument.Sampler:
		return t.sampler
	case instrument.FM:
		return t.fm
	case instrument.Noise:
		return t.noise
	default:
		return t.osc
	}
}

func (t *Track) ID() int { return t.id }

func (t *Track) Name() string { return t.name }

// Kind is the instrument the track was created with.
func (t *Track) Kind() instrument.Kind { return t.kind }

func (t *Track) Muted() bool { return t.muted.Load() }

func (t *Track) Soloed() bool { return t.solo.Load() }

// Step returns a copy of step i.
func (t *Track) Step(i int) (StepInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.seq.Step(i)
	if !ok {
		return StepInfo{}, false
	}
	return StepInfo{Active: st.Active, Params: *st.Data}, true
}

// State copies the control state of the track.
// The step buffer is allocated before taking the lock the audio goroutine
// advances under.
func (t *Track) State() TrackState {
	steps := make([]StepInfo, sequencer.MaxSteps)

	t.mu.Lock()
	defer t.mu.Unlock()
	s := TrackState{
		Name:         t.name,
		Kind:         t.kind,
		Current:      t.seq.Current(),
		StepsPerBeat: t.seq.StepsPerBeat(),
		Muted:        t.muted.Load(),
		Solo:         t.solo.Load(),
		Steps:        steps[:t.seq.Len()],
	}
	for i := range s.Steps {
		st, _ := t.seq.Step(i)
		s.Steps[i] = StepInfo{Active: st.Active, Params: *st.Data}
	}
	return s
}

// advance moves the sequencer if it is due on the global step idx and
// returns the parameters to trigger, if any.
func (t *Track) advance(idx int64) (instrument.TrackParameters, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seq.Due(idx) {
		return instrument.TrackParameters{}, false
	}
	st := t.seq.AdvanceStep()
	if !st.Active {
		return instrument.TrackParameters{}, false
	}
	return *st.Data, true
}

func (t *Track) audible(soloing bool) bool {
	if t.muted.Load() {
		return false
	}
	return !soloing || t.solo.Load()
}

// trigger makes p the live parameters and starts the matching voice. It
// reports whether the mix gains changed.
func (t *Track) trigger(p instrument.TrackParameters) bool {
	p = p.Clamped()
	v := t.voiceFor(p.Instrument.Kind())
	if v != t.voice {
		t.voice.Stop()
		t.voice = v
	}
	if p.Filter != t.live.Filter || p.Cutoff != t.live.Cutoff || p.Q != t.live.Q {
		t.filterDirty = true
	}
	t.live = p

	l, r := p.Gains()
	changed := l != t.gainL || r != t.gainR
	t.gainL, t.gainR = l, r

	v.Trigger(p)
	return changed
}

func (t *Track) release() { t.voice.Release() }

// playing reports whether the track's voice is sounding. Audio goroutine
// only.
func (t *Track) playing() bool { return t.voice.Active() }
