// Package config loads the engine and kit description from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/sample"
	"github.com/icco/pocketseq/internal/sequencer"
)

const (
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MinBufferFrames = 64
	MaxBufferFrames = 8192
	MaxTracks       = 16
)

// Config is the top level of a kit file.
type Config struct {
	SampleRate   int      `yaml:"sample_rate"`
	BufferFrames int      `yaml:"buffer_frames"`
	BPM          float64  `yaml:"bpm"`
	BeatsPerBar  int      `yaml:"beats_per_bar"`
	EventQueue   int      `yaml:"event_queue,omitempty"`
	RetireQueue  int      `yaml:"retire_queue,omitempty"`
	Samples      []Sample `yaml:"samples,omitempty"`
	Tracks       []Track  `yaml:"tracks"`
}

// Sample loads a file into a bank slot. Relative paths are resolved against
// the directory of the config file.
type Sample struct {
	Slot int    `yaml:"slot"`
	Path string `yaml:"path"`
}

type Envelope struct {
	AttackMs   float64 `yaml:"attack_ms"`
	DecayMs    float64 `yaml:"decay_ms"`
	Sustain    float64 `yaml:"sustain"`
	ReleaseMs  float64 `yaml:"release_ms"`
	DurationMs float64 `yaml:"duration_ms"`
}

type Synth struct {
	Waveform string  `yaml:"waveform"`
	Note     uint8   `yaml:"note"`
	Fine     float64 `yaml:"fine,omitempty"`
	Duty     float64 `yaml:"duty,omitempty"`
}

type Sampler struct {
	Slot  int     `yaml:"slot"`
	Start int64   `yaml:"start,omitempty"`
	Pitch float64 `yaml:"pitch,omitempty"`
	Loop  bool    `yaml:"loop,omitempty"`
}

type FM struct {
	Note   uint8    `yaml:"note"`
	Ratio  float64  `yaml:"ratio"`
	Index  float64  `yaml:"index"`
	ModEnv Envelope `yaml:"mod_envelope"`
}

type Noise struct {
	Rate  float64 `yaml:"rate"`
	Short bool    `yaml:"short,omitempty"`
}

// Track describes one sequencer track. Only the block matching Instrument
// is used; fields left out of the file keep their defaults.
type Track struct {
	Name         string   `yaml:"name"`
	Instrument   string   `yaml:"instrument"`
	Steps        int      `yaml:"steps"`
	StepsPerBeat int      `yaml:"steps_per_beat"`
	Active       []int    `yaml:"active,flow"`
	Volume       float64  `yaml:"volume"`
	Pan          float64  `yaml:"pan"`
	Velocity     float64  `yaml:"velocity"`
	Filter       string   `yaml:"filter"`
	Cutoff       float64  `yaml:"cutoff"`
	Q            float64  `yaml:"q"`
	Envelope     Envelope `yaml:"envelope"`
	Synth        *Synth   `yaml:"synth,omitempty"`
	Sampler      *Sampler `yaml:"sampler,omitempty"`
	FM           *FM      `yaml:"fm,omitempty"`
	Noise        *Noise   `yaml:"noise,omitempty"`
}

// UnmarshalYAML fills in the defaults for the track's instrument before
// decoding, so a file only needs to name what it changes.
func (t *Track) UnmarshalYAML(n *yaml.Node) error {
	var head struct {
		Instrument string `yaml:"instrument"`
	}
	if err := n.Decode(&head); err != nil {
		return err
	}
	kind, err := instrument.ParseKind(head.Instrument)
	if err != nil && head.Instrument != "" {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*t = NewTrack("", kind)

	type plain Track
	return n.Decode((*plain)(t))
}

// NewTrack returns a track of kind with default parameters and no active
// steps.
func NewTrack(name string, kind instrument.Kind) Track {
	p := instrument.Default(kind)
	t := Track{
		Name:         name,
		Instrument:   kind.String(),
		Steps:        16,
		StepsPerBeat: 4,
		Volume:       p.Volume,
		Pan:          p.Pan,
		Velocity:     p.Velocity,
		Filter:       p.Filter.String(),
		Cutoff:       p.Cutoff,
		Q:            p.Q,
		Envelope:     fromEnvelope(p.Env),
	}
	switch kind {
	case instrument.Sampler:
		sp, _ := p.Instrument.Sampler()
		t.Sampler = &Sampler{Slot: sp.Slot, Start: sp.Start, Pitch: sp.Pitch, Loop: sp.Loop}
	case instrument.FM:
		fp, _ := p.Instrument.FM()
		t.FM = &FM{Note: fp.Note, Ratio: fp.Ratio, Index: fp.Index, ModEnv: fromEnvelope(fp.ModEnv)}
	case instrument.Noise:
		np, _ := p.Instrument.Noise()
		t.Noise = &Noise{Rate: np.Rate, Short: np.Short}
	default:
		sp, _ := p.Instrument.Synth()
		t.Synth = &Synth{Waveform: sp.Waveform.String(), Note: sp.Note, Fine: sp.Fine, Duty: sp.Duty}
	}
	return t
}

// Default is the kit used when no config file is given: a lead, a sampler
// on slot 0, an FM bass and hats.
func Default() *Config {
	lead := NewTrack("lead", instrument.Synth)
	lead.Active = []int{0, 3, 6, 10, 12}
	lead.Filter = hw.FilterLowPass.String()
	lead.Cutoff = 2400

	drums := NewTrack("drums", instrument.Sampler)
	drums.Active = []int{0, 4, 8, 12}

	bass := NewTrack("bass", instrument.FM)
	bass.Active = []int{0, 2, 8, 11, 14}
	bass.Pan = -0.2

	hats := NewTrack("hats", instrument.Noise)
	hats.StepsPerBeat = 8
	hats.Steps = 32
	hats.Active = []int{2, 6, 10, 14, 18, 22, 26, 30}
	hats.Volume = 0.4
	hats.Pan = 0.3
	hats.Filter = hw.FilterHighPass.String()
	hats.Cutoff = 6000
	hats.Envelope = Envelope{AttackMs: 0, DecayMs: 30, Sustain: 0, ReleaseMs: 20, DurationMs: 0}

	return &Config{
		SampleRate:   44100,
		BufferFrames: engine.DefaultBufferFrames,
		BPM:          clock.DefaultBPM,
		BeatsPerBar:  clock.DefaultBeatsPerBar,
		Tracks:       []Track{lead, drums, bass, hats},
	}
}

// Load reads and validates a config file. Settings the file leaves out keep
// the values of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range cfg.Samples {
		if p := cfg.Samples[i].Path; p != "" && !filepath.IsAbs(p) {
			cfg.Samples[i].Path = filepath.Join(dir, p)
		}
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes the config as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Validate reports every out-of-range setting, each wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		bad("sample_rate %d not in [%d, %d]", c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.BufferFrames < MinBufferFrames || c.BufferFrames > MaxBufferFrames {
		bad("buffer_frames %d not in [%d, %d]", c.BufferFrames, MinBufferFrames, MaxBufferFrames)
	}
	if c.BPM < clock.MinBPM || c.BPM > clock.MaxBPM {
		bad("bpm %v not in [%d, %d]", c.BPM, clock.MinBPM, clock.MaxBPM)
	}
	if c.BeatsPerBar < clock.MinBeatsPerBar || c.BeatsPerBar > clock.MaxBeatsPerBar {
		bad("beats_per_bar %d not in [%d, %d]", c.BeatsPerBar, clock.MinBeatsPerBar, clock.MaxBeatsPerBar)
	}
	if len(c.Tracks) == 0 || len(c.Tracks) > MaxTracks {
		bad("%d tracks, want 1 to %d", len(c.Tracks), MaxTracks)
	}

	slots := make(map[int]bool)
	for _, s := range c.Samples {
		switch {
		case s.Slot < 0 || s.Slot >= sample.MaxSlots:
			bad("sample slot %d not in [0, %d)", s.Slot, sample.MaxSlots)
		case slots[s.Slot]:
			bad("sample slot %d used twice", s.Slot)
		case s.Path == "":
			bad("sample slot %d has no path", s.Slot)
		}
		slots[s.Slot] = true
	}

	for i, t := range c.Tracks {
		if _, err := t.params(); err != nil {
			bad("track %d (%s): %v", i, t.Name, err)
		}
		if t.Steps < 1 || t.Steps > sequencer.MaxSteps {
			bad("track %d (%s): steps %d not in [1, %d]", i, t.Name, t.Steps, sequencer.MaxSteps)
		}
		if !sequencer.ValidStepsPerBeat(t.StepsPerBeat) {
			bad("track %d (%s): steps_per_beat %d does not divide %d", i, t.Name, t.StepsPerBeat, clock.StepsPerBeat)
		}
		for _, a := range t.Active {
			if a < 0 || a >= t.Steps {
				bad("track %d (%s): active step %d out of range", i, t.Name, a)
			}
		}
	}
	return errors.Join(errs...)
}

// params converts the track to the parameters every step starts with.
func (t Track) params() (instrument.TrackParameters, error) {
	kind, err := instrument.ParseKind(t.Instrument)
	if err != nil {
		return instrument.TrackParameters{}, err
	}
	filter, ok := hw.ParseFilterType(t.Filter)
	if !ok {
		return instrument.TrackParameters{}, fmt.Errorf("unknown filter %q", t.Filter)
	}

	p := instrument.TrackParameters{
		Volume:   t.Volume,
		Pan:      t.Pan,
		Velocity: t.Velocity,
		Filter:   filter,
		Cutoff:   t.Cutoff,
		Q:        t.Q,
		Env:      t.Envelope.params(),
	}
	def := NewTrack("", kind)
	switch kind {
	case instrument.Sampler:
		s := t.Sampler
		if s == nil {
			s = def.Sampler
		}
		if s.Slot < 0 || s.Slot >= sample.MaxSlots {
			return p, fmt.Errorf("sampler slot %d not in [0, %d)", s.Slot, sample.MaxSlots)
		}
		p.Instrument = instrument.SamplerVariant(instrument.SamplerParams{Slot: s.Slot, Start: s.Start, Pitch: s.Pitch, Loop: s.Loop})
	case instrument.FM:
		f := t.FM
		if f == nil {
			f = def.FM
		}
		p.Instrument = instrument.FMVariant(instrument.FMParams{Note: f.Note, Ratio: f.Ratio, Index: f.Index, ModEnv: f.ModEnv.params()})
	case instrument.Noise:
		n := t.Noise
		if n == nil {
			n = def.Noise
		}
		p.Instrument = instrument.NoiseVariant(instrument.NoiseParams{Rate: n.Rate, Short: n.Short})
	default:
		s := t.Synth
		if s == nil {
			s = def.Synth
		}
		w, err := instrument.ParseWaveform(s.Waveform)
		if err != nil {
			return p, err
		}
		p.Instrument = instrument.SynthVariant(instrument.SynthParams{Waveform: w, Note: s.Note, Fine: s.Fine, Duty: s.Duty})
	}
	return p, nil
}

func (e Envelope) params() instrument.EnvelopeParams {
	return instrument.EnvelopeParams{
		AttackMs:   e.AttackMs,
		DecayMs:    e.DecayMs,
		Sustain:    e.Sustain,
		ReleaseMs:  e.ReleaseMs,
		DurationMs: e.DurationMs,
	}
}

func fromEnvelope(p instrument.EnvelopeParams) Envelope {
	return Envelope{
		AttackMs:   p.AttackMs,
		DecayMs:    p.DecayMs,
		Sustain:    p.Sustain,
		ReleaseMs:  p.ReleaseMs,
		DurationMs: p.DurationMs,
	}
}

// TrackSpecs converts the tracks for engine.New.
func (c *Config) TrackSpecs() ([]engine.TrackSpec, error) {
	specs := make([]engine.TrackSpec, 0, len(c.Tracks))
	for i, t := range c.Tracks {
		p, err := t.params()
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		specs = append(specs, engine.TrackSpec{
			Name:         t.Name,
			Steps:        t.Steps,
			StepsPerBeat: t.StepsPerBeat,
			Params:       p,
			Active:       t.Active,
		})
	}
	return specs, nil
}

// EngineOptions returns the engine settings of the config.
func (c *Config) EngineOptions(log *slog.Logger) engine.Options {
	return engine.Options{
		BufferFrames:   c.BufferFrames,
		EventCapacity:  c.EventQueue,
		RetireCapacity: c.RetireQueue,
		Logger:         log,
	}
}

// LoadSamples opens every configured sample and installs it in bank. Files
// that fail to open are skipped and reported in the returned error.
func (c *Config) LoadSamples(reg *decode.Registry, bank *sample.Bank, log *slog.Logger) error {
	var errs []error
	for _, cs := range c.Samples {
		s, err := sample.Create(reg, cs.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", cs.Slot, err))
			continue
		}
		old, err := bank.Swap(cs.Slot, s)
		if err != nil {
			s.Release()
			errs = append(errs, fmt.Errorf("slot %d: %w", cs.Slot, err))
			continue
		}
		if old != nil {
			old.Release()
		}
		log.Debug("sample loaded", "slot", cs.Slot, "path", cs.Path, "frames", s.Length(), "rate", s.SampleRate())
	}
	return errors.Join(errs...)
}
