package voice

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/decode/decodetest"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/sample"
)

const testRate = 8000

// held is an envelope that jumps to full level and stays there.
var held = instrument.EnvelopeParams{Sustain: 1, DurationMs: 60000}

func params(v instrument.Variant) instrument.TrackParameters {
	p := instrument.Default(v.Kind())
	p.Velocity = 1
	p.Env = held
	p.Instrument = v
	return p
}

func peak(frames []hw.Frame) int {
	m := 0
	for _, f := range frames {
		for _, s := range f {
			if v := int(s); v > m {
				m = v
			} else if -v > m {
				m = -v
			}
		}
	}
	return m
}

func TestNoteFreq(t *testing.T) {
	t.Parallel()

	tests := []struct {
		note  uint8
		cents float64
		want  float64
	}{
		{69, 0, 440},
		{81, 0, 880},
		{57, 0, 220},
		{60, 0, 261.6256},
		{69, 100, 466.1638},
	}
	for _, tt := range tests {
		if got := NoteFreq(tt.note, tt.cents); math.Abs(got-tt.want) > 0.001 {
			t.Errorf("NoteFreq(%d, %v) = %v, want %v", tt.note, tt.cents, got, tt.want)
		}
	}
}

func TestGenerateWave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w     instrument.Waveform
		phase float64
		want  float64
	}{
		{instrument.Sine, 0.25, 1},
		{instrument.Square, 0.1, 0.8},
		{instrument.Square, 0.6, -0.8},
		{instrument.Sawtooth, 0, -1},
		{instrument.Sawtooth, 0.75, 0.5},
		{instrument.Triangle, 0.25, 0},
		{instrument.Triangle, 0.5, 1},
	}
	for _, tt := range tests {
		if got := generateWave(tt.w, tt.phase, 0.5); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("generateWave(%v, %v) = %v, want %v", tt.w, tt.phase, got, tt.want)
		}
	}
}

func TestVoicesSilentUntilTriggered(t *testing.T) {
	t.Parallel()

	voices := map[string]Voice{
		"oscillator": NewOscillator(testRate),
		"noise":      NewNoise(testRate),
		"fm":         NewFM(testRate),
		"sampler":    NewSampler(testRate, &sample.Bank{}),
	}
	for name, v := range voices {
		buf := make([]hw.Frame, 64)
		for i := range buf {
			buf[i] = hw.Frame{1, 1}
		}
		v.Render(buf)
		if v.Active() || peak(buf) != 0 {
			t.Errorf("%s: idle voice produced sound", name)
		}
	}
}

func TestVoicesIgnoreOtherKinds(t *testing.T) {
	t.Parallel()

	o := NewOscillator(testRate)
	o.Trigger(params(instrument.DefaultVariant(instrument.Noise)))
	if o.Active() {
		t.Error("oscillator started on noise parameters")
	}

	n := NewNoise(testRate)
	n.Trigger(params(instrument.DefaultVariant(instrument.Synth)))
	if n.Active() {
		t.Error("noise started on synth parameters")
	}
}

func TestOscillatorRendersAndStops(t *testing.T) {
	t.Parallel()

	o := NewOscillator(testRate)
	o.Trigger(params(instrument.SynthVariant(instrument.SynthParams{Waveform: instrument.Square, Note: 69})))
	if !o.Active() {
		t.Fatal("oscillator not active after Trigger")
	}

	buf := make([]hw.Frame, 256)
	o.Render(buf)
	amp := 0.8
	want := int(amp * headroom * 32767)
	if p := peak(buf); p < want-1 || p > want+1 {
		t.Errorf("square peak = %d, want %d", p, want)
	}
	if buf[0][0] != buf[0][1] {
		t.Errorf("oscillator is not centered: %v", buf[0])
	}

	o.Stop()
	o.Render(buf)
	if o.Active() || peak(buf) != 0 {
		t.Error("oscillator still sounding after Stop")
	}
}

func TestReleaseFadesOut(t *testing.T) {
	t.Parallel()

	o := NewOscillator(testRate)
	p := params(instrument.DefaultVariant(instrument.Synth))
	p.Env.ReleaseMs = 10
	o.Trigger(p)

	buf := make([]hw.Frame, 64)
	o.Render(buf)
	o.Release()
	o.Render(make([]hw.Frame, testRate/100+1))
	if o.Active() {
		t.Error("voice still active after its release time")
	}
}

func TestNoiseIsDeterministicAndBipolar(t *testing.T) {
	t.Parallel()

	render := func(short bool) []hw.Frame {
		n := NewNoise(testRate)
		n.Trigger(params(instrument.NoiseVariant(instrument.NoiseParams{Rate: 1, Short: short})))
		buf := make([]hw.Frame, 512)
		n.Render(buf)
		return buf
	}

	a, b := render(false), render(false)
	pos, neg := 0, 0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("frame %d differs between identical voices", i)
		}
		if a[i][0] > 0 {
			pos++
		} else if a[i][0] < 0 {
			neg++
		}
	}
	if pos < 100 || neg < 100 {
		t.Errorf("noise is lopsided: %d positive, %d negative", pos, neg)
	}

	short := render(true)
	same := true
	for i := range a {
		if short[i] != a[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("short mode produced the long sequence")
	}
}

func TestFMWithoutModulationIsSine(t *testing.T) {
	t.Parallel()

	fm := NewFM(testRate)
	fm.Trigger(params(instrument.FMVariant(instrument.FMParams{Note: 69, Ratio: 2, Index: 0, ModEnv: held})))
	osc := NewOscillator(testRate)
	osc.Trigger(params(instrument.SynthVariant(instrument.SynthParams{Waveform: instrument.Sine, Note: 69})))

	a := make([]hw.Frame, 200)
	b := make([]hw.Frame, 200)
	fm.Render(a)
	osc.Render(b)
	for i := range a {
		if d := int(a[i][0]) - int(b[i][0]); d > 1 || d < -1 {
			t.Fatalf("frame %d: fm %d sine %d", i, a[i][0], b[i][0])
		}
	}

	fm.Trigger(params(instrument.FMVariant(instrument.FMParams{Note: 69, Ratio: 2, Index: 5, ModEnv: held})))
	fm.Render(a)
	differs := false
	for i := range a {
		if int(a[i][0])-int(b[i][0]) > 100 {
			differs = true
		}
	}
	if !differs {
		t.Error("modulation index had no effect")
	}
}

func newSampler(t *testing.T, frames int) (*Sampler, *sample.Sample) {
	t.Helper()
	reg := decodetest.Registry(map[string]*decodetest.Stream{
		"pad.mem": decodetest.NewConstant(testRate, frames, 16384),
	})
	s, err := sample.Create(reg, "pad.mem")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bank := &sample.Bank{}
	bank.Swap(2, s)
	return NewSampler(testRate, bank), s
}

func TestSamplerPlaysToEnd(t *testing.T) {
	t.Parallel()

	v, _ := newSampler(t, 100)
	v.Trigger(params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 2})))

	buf := make([]hw.Frame, 150)
	v.Render(buf)
	want := toSample(0.5)
	for i := 0; i < 100; i++ {
		if buf[i] != (hw.Frame{want, want}) {
			t.Fatalf("frame %d = %v, want %d", i, buf[i], want)
		}
	}
	if peak(buf[100:]) != 0 {
		t.Error("sampler kept playing past the end")
	}
	if v.Active() {
		t.Error("sampler active after the end of a one-shot")
	}
}

func TestSamplerPitchAndLoop(t *testing.T) {
	t.Parallel()

	v, _ := newSampler(t, 100)
	v.Trigger(params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 2, Pitch: 12})))
	buf := make([]hw.Frame, 80)
	v.Render(buf)
	if peak(buf[:50]) == 0 || peak(buf[50:]) != 0 {
		t.Error("an octave up did not halve the playback length")
	}

	v.Trigger(params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 2, Start: 60, Loop: true})))
	buf = make([]hw.Frame, 500)
	v.Render(buf)
	if !v.Active() || buf[499] == (hw.Frame{}) {
		t.Error("looping sampler stopped")
	}
}

func TestSamplerEmptySlotAndDetach(t *testing.T) {
	t.Parallel()

	v, s := newSampler(t, 100)
	v.Trigger(params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 5})))
	if v.Active() {
		t.Error("sampler started on an empty slot")
	}

	v.Trigger(params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 2, Loop: true})))
	v.Detach(nil)
	if !v.Active() {
		t.Fatal("Detach(nil) stopped the voice")
	}
	v.Detach(s)
	if v.Active() {
		t.Error("Detach of the playing sample left the voice active")
	}
}

func TestSamplerRetriggerOnWAVDoesNotAllocate(t *testing.T) {
	const frames = 5 * testRate
	data := make([]int, frames)
	for i := range data {
		data[i] = i%2000 - 1000
	}
	path := filepath.Join(t.TempDir(), "long.wav")
	decodetest.WriteWAV(t, path, testRate, 16, 1, data)

	s, err := sample.Create(decode.Default(), path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bank := &sample.Bank{}
	if _, err := bank.Swap(1, s); err != nil {
		t.Fatal(err)
	}
	defer bank.Close()

	v := NewSampler(testRate, bank)
	p := params(instrument.SamplerVariant(instrument.SamplerParams{Slot: 1, Start: frames - 4*testRate}))
	buf := make([]hw.Frame, 512)

	// Play far into the file first so every retrigger seeks backwards.
	v.Trigger(p)
	for range 40 {
		v.Render(buf)
	}

	allocs := testing.AllocsPerRun(20, func() {
		v.Trigger(p)
		for range 4 {
			v.Render(buf)
		}
	})
	if allocs != 0 {
		t.Errorf("retrigger and render allocated %v times per run", allocs)
	}
	if peak(buf) == 0 {
		t.Error("sampler rendered silence from the WAV file")
	}
}
