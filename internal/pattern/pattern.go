// Package pattern converts step grids to and from Standard MIDI Files.
//
// A pattern file is a format 1 SMF: track 0 holds the meter and tempo, and
// sequencer track i is written to SMF track i+1 on MIDI channel i. Each
// active step is a note lasting one step. The file does not record steps
// per beat; readers pass the resolution of each track in.
package pattern

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/sequencer"
)

// PPQ is the resolution of written files in ticks per quarter note.
const PPQ = 960

// MaxTracks is the number of MIDI channels.
const MaxTracks = 16

// Noise steps are written as General MIDI hi-hats.
const (
	closedHat = 42
	openHat   = 46
)

type Step struct {
	Active   bool
	Note     uint8
	Velocity uint8
}

type Track struct {
	Name         string
	StepsPerBeat int
	Steps        []Step
}

// Pattern is the step grid of every track plus the tempo.
type Pattern struct {
	BPM         float64
	BeatsPerBar int
	Tracks      []Track
}

// FromSnapshot captures the grid of a running engine.
func FromSnapshot(s engine.Snapshot) *Pattern {
	p := &Pattern{
		BPM:         s.Clock.BPM,
		BeatsPerBar: s.Clock.Position.BeatsPerBar,
		Tracks:      make([]Track, len(s.Tracks)),
	}
	for i, ts := range s.Tracks {
		t := Track{Name: ts.Name, StepsPerBeat: ts.StepsPerBeat, Steps: make([]Step, len(ts.Steps))}
		for j, st := range ts.Steps {
			t.Steps[j] = Step{
				Active:   st.Active,
				Note:     NoteOf(st.Params),
				Velocity: velocityOf(st.Params),
			}
		}
		p.Tracks[i] = t
	}
	return p
}

// NoteOf returns the MIDI note a step plays.
func NoteOf(p instrument.TrackParameters) uint8 {
	switch p.Instrument.Kind() {
	case instrument.Sampler:
		sp, _ := p.Instrument.Sampler()
		return clampNote(60 + math.Round(sp.Pitch))
	case instrument.FM:
		fp, _ := p.Instrument.FM()
		return fp.Note
	case instrument.Noise:
		if np, _ := p.Instrument.Noise(); np.Short {
			return openHat
		}
		return closedHat
	default:
		sp, _ := p.Instrument.Synth()
		return sp.Note
	}
}

// WithNote returns p retuned to note. Noise steps have no pitch and are
// returned unchanged.
func WithNote(p instrument.TrackParameters, note uint8) instrument.TrackParameters {
	switch p.Instrument.Kind() {
	case instrument.Sampler:
		sp, _ := p.Instrument.Sampler()
		sp.Pitch = float64(note) - 60
		p.Instrument = instrument.SamplerVariant(sp)
	case instrument.FM:
		fp, _ := p.Instrument.FM()
		fp.Note = note
		p.Instrument = instrument.FMVariant(fp)
	case instrument.Synth:
		sp, _ := p.Instrument.Synth()
		sp.Note = note
		p.Instrument = instrument.SynthVariant(sp)
	}
	return p
}

func velocityOf(p instrument.TrackParameters) uint8 {
	return uint8(max(1, min(127, math.Round(p.Velocity*127))))
}

func clampNote(v float64) uint8 {
	return uint8(max(0, min(127, v)))
}

// Write encodes the pattern as an SMF.
func (p *Pattern) Write(w io.Writer) error {
	if len(p.Tracks) > MaxTracks {
		return fmt.Errorf("%d tracks: %w", len(p.Tracks), ErrTooManyTracks)
	}
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(PPQ)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(uint8(p.BeatsPerBar), 4))
	tempo.Add(0, smf.MetaTempo(p.BPM))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return fmt.Errorf("error adding tempo track: %w", err)
	}

	for ch, t := range p.Tracks {
		if !sequencer.ValidStepsPerBeat(t.StepsPerBeat) {
			return fmt.Errorf("track %d: steps per beat %d: %w", ch, t.StepsPerBeat, ErrResolution)
		}
		tps := ticksPerStep(t.StepsPerBeat)
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(t.Name))

		var last uint32
		for i, st := range t.Steps {
			if !st.Active {
				continue
			}
			pos := uint32(i) * tps
			track.Add(pos-last, midi.NoteOn(uint8(ch), st.Note, max(st.Velocity, 1)))
			track.Add(tps-1, midi.NoteOff(uint8(ch), st.Note))
			last = pos + tps - 1
		}
		track.Close(uint32(len(t.Steps))*tps - last)
		if err := sm.Add(track); err != nil {
			return fmt.Errorf("error adding track %d: %w", ch, err)
		}
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

// Save writes the pattern to path.
func (p *Pattern) Save(path string) error {
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Read decodes an SMF. stepsPerBeat gives the resolution of each track and
// fixes the number of tracks returned; notes on other channels are ignored.
// Notes are quantized to the nearest step.
func Read(r io.Reader, stepsPerBeat []int) (*Pattern, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrTimeFormat
	}
	ppq := uint32(mt.Resolution())
	if ppq == 0 {
		return nil, ErrTimeFormat
	}

	p := &Pattern{
		BPM:         clock.DefaultBPM,
		BeatsPerBar: clock.DefaultBeatsPerBar,
		Tracks:      make([]Track, min(len(stepsPerBeat), MaxTracks)),
	}
	if tc := sm.TempoChanges(); len(tc) > 0 {
		p.BPM = tc[0].BPM
	}
	for i := range p.Tracks {
		if !sequencer.ValidStepsPerBeat(stepsPerBeat[i]) {
			return nil, fmt.Errorf("track %d: steps per beat %d: %w", i, stepsPerBeat[i], ErrResolution)
		}
		p.Tracks[i].StepsPerBeat = stepsPerBeat[i]
	}

	for _, track := range sm.Tracks {
		var abs uint32
		var seen [MaxTracks]bool
		for _, ev := range track {
			abs += ev.Delta

			var num, denom uint8
			if ev.Message.GetMetaMeter(&num, &denom) && num > 0 {
				p.BeatsPerBar = int(num)
				continue
			}
			var ch, key, vel uint8
			if !midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) || int(ch) >= len(p.Tracks) {
				continue
			}
			t := &p.Tracks[ch]
			tps := ppq / uint32(t.StepsPerBeat)
			step := int((abs + tps/2) / tps)
			if step >= sequencer.MaxSteps {
				continue
			}
			t.grow(step + 1)
			t.Steps[step] = Step{Active: true, Note: key, Velocity: vel}
			seen[ch] = true
		}
		// A track's end of track event marks its length.
		for ch, ok := range seen {
			if !ok {
				continue
			}
			t := &p.Tracks[ch]
			tps := ppq / uint32(t.StepsPerBeat)
			t.grow(min(int((abs+tps-1)/tps), sequencer.MaxSteps))
		}
	}
	return p, nil
}

// Load reads a pattern file.
func Load(path string, stepsPerBeat []int) (*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Read(f, stepsPerBeat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (t *Track) grow(n int) {
	for len(t.Steps) < n {
		t.Steps = append(t.Steps, Step{})
	}
}

func ticksPerStep(stepsPerBeat int) uint32 {
	return PPQ / uint32(stepsPerBeat)
}

// Apply writes the pattern into track specs before the engine starts. Track
// lengths, active steps and per-step notes come from the pattern; tracks the
// pattern has no data for keep their spec.
func (p *Pattern) Apply(specs []engine.TrackSpec) {
	for i := range specs {
		if i >= len(p.Tracks) || len(p.Tracks[i].Steps) == 0 {
			continue
		}
		t := p.Tracks[i]
		s := &specs[i]
		base := s.Params
		s.Steps = len(t.Steps)
		s.Active = s.Active[:0:0]
		s.Overrides = make(map[int]instrument.TrackParameters)
		for j, st := range t.Steps {
			if !st.Active {
				continue
			}
			s.Active = append(s.Active, j)
			o := WithNote(base, st.Note)
			o.Velocity = float64(st.Velocity) / 127
			if o != base {
				s.Overrides[j] = o
			}
		}
	}
}
