package event

import (
	"testing"

	"github.com/icco/pocketseq/internal/instrument"
)

func TestTypeString(t *testing.T) {
	t.Parallel()

	if got := SwapSample.String(); got != "SwapSample" {
		t.Errorf("SwapSample.String() = %q", got)
	}
	if got := SetStepsPerBeat.String(); got != "SetStepsPerBeat" {
		t.Errorf("SetStepsPerBeat.String() = %q", got)
	}
	if got := Type(99).String(); got != "Unknown" {
		t.Errorf("Type(99).String() = %q", got)
	}
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	p := instrument.Default(instrument.FM)
	tests := []struct {
		name string
		ev   Event
		want Event
	}{
		{"trigger", Trigger(2, p), Event{Type: TriggerStep, Track: 2, Params: p}},
		{"update", Update(1, 7, p), Event{Type: UpdateStep, Track: 1, Step: 7, Params: p}},
		{"toggle", Toggle(3, 15), Event{Type: ToggleStep, Track: 3, Step: 15}},
		{"activate", Activate(1, 2, true), Event{Type: SetStepActive, Track: 1, Step: 2, Value: 1}},
		{"mute", Mute(0, true), Event{Type: SetMute, Value: 1}},
		{"unsolo", Solo(1, false), Event{Type: SetSolo, Track: 1}},
		{"bpm", BPM(133.5), Event{Type: SetBPM, Value: 133.5}},
		{"bar", BeatsPerBar(7), Event{Type: SetBeatsPerBar, Value: 7}},
		{"start", Start(), Event{Type: StartClock}},
		{"resize", Resize(2, 32), Event{Type: ResizeSequencer, Track: 2, Value: 32}},
		{"resolution", StepsPerBeat(1, 8), Event{Type: SetStepsPerBeat, Track: 1, Value: 8}},
		{"swap", Swap(4, nil), Event{Type: SwapSample, Track: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ev != tt.want {
				t.Errorf("got %+v, want %+v", tt.ev, tt.want)
			}
		})
	}

	if !Mute(0, true).Flag() || Mute(0, false).Flag() {
		t.Error("Flag does not round-trip the mute state")
	}
	if n := Resize(0, 48).Int(); n != 48 {
		t.Errorf("Resize(0, 48).Int() = %d", n)
	}
}

// Payloads, including the instrument variant, survive the queue unchanged.
func TestQueuePreservesPayload(t *testing.T) {
	t.Parallel()

	q := NewQueue(8)
	var sent []Event
	for i := 0; i < q.Cap(); i++ {
		p := instrument.Default(instrument.Synth)
		p.Instrument = instrument.SynthVariant(instrument.SynthParams{Note: uint8(40 + i), Duty: 0.25})
		p.Pan = float64(i) / 10
		ev := Update(i, i*3, p)
		if !q.Push(ev) {
			t.Fatalf("push %d failed", i)
		}
		sent = append(sent, ev)
	}
	if q.Push(Start()) {
		t.Fatal("push into a full queue succeeded")
	}

	var got Event
	for i, want := range sent {
		if !q.Pop(&got) {
			t.Fatalf("pop %d failed", i)
		}
		if got != want {
			t.Errorf("event %d = %+v, want %+v", i, got, want)
		}
		sp, ok := got.Params.Instrument.Synth()
		if !ok || sp.Note != uint8(40+i) {
			t.Errorf("event %d variant = %+v, %v", i, sp, ok)
		}
	}
}
