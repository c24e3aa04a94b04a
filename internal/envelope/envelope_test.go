package envelope

import "testing"

func TestEnvelopeFullCycle(t *testing.T) {
	t.Parallel()

	const (
		sampleRate = 1000 // one sample per millisecond
		sustain    = 0.4
		hold       = 25
	)

	e := New(sampleRate)
	e.SetParams(10, 20, sustain, 30, hold)

	if e.State() != Idle || e.Next() != 0 {
		t.Fatalf("new envelope not idle and silent")
	}

	e.Trigger()

	prev := 0.0
	n := 0
	for e.State() == Attack {
		v := e.Next()
		if v < prev {
			t.Fatalf("attack decreased: %v after %v", v, prev)
		}
		prev = v
		if n++; n > 1000 {
			t.Fatal("attack never finished")
		}
	}
	if prev != 1 {
		t.Fatalf("attack peaked at %v, want 1", prev)
	}

	for e.State() == Decay {
		v := e.Next()
		if v > prev {
			t.Fatalf("decay increased: %v after %v", v, prev)
		}
		if v < sustain {
			t.Fatalf("decay undershot sustain: %v", v)
		}
		prev = v
		if n++; n > 2000 {
			t.Fatal("decay never finished")
		}
	}
	if e.State() != Sustain || prev != sustain {
		t.Fatalf("after decay: state %v level %v", e.State(), prev)
	}

	held := 1 // the sample that landed on the sustain level
	for {
		v := e.Next()
		if e.State() != Sustain {
			break
		}
		if v != sustain {
			t.Fatalf("sustain level moved to %v", v)
		}
		held++
	}
	if held != hold {
		t.Errorf("held sustain for %d samples, want %d", held, hold)
	}

	if e.State() != Release {
		t.Fatalf("state after sustain = %v, want Release", e.State())
	}
	prev = sustain
	for e.State() == Release {
		v := e.Next()
		if v > prev {
			t.Fatalf("release increased: %v after %v", v, prev)
		}
		prev = v
		if n++; n > 5000 {
			t.Fatal("release never finished")
		}
	}
	if e.State() != Idle || e.Output() != 0 {
		t.Errorf("final state %v output %v, want Idle/0", e.State(), e.Output())
	}
}

func TestEnvelopeZeroDurationsAreImmediate(t *testing.T) {
	t.Parallel()

	e := New(44100)
	e.SetParams(0, 0, 0.5, 0, 0)
	e.Trigger()

	steps := []struct {
		state State
		level float64
	}{
		{Decay, 1},
		{Sustain, 0.5},
		{Release, 0.5},
		{Idle, 0},
	}
	for i, want := range steps {
		v := e.Next()
		if e.State() != want.state || v != want.level {
			t.Errorf("sample %d: state %v level %v, want %v %v", i, e.State(), v, want.state, want.level)
		}
	}
}

func TestEnvelopeRetrigger(t *testing.T) {
	t.Parallel()

	e := New(1000)
	e.SetParams(100, 0, 1, 100, 50)
	e.Trigger()
	for i := 0; i < 30; i++ {
		e.Next()
	}
	level := e.Output()

	e.Trigger()
	if e.State() != Attack {
		t.Fatalf("state after retrigger = %v", e.State())
	}
	if v := e.Next(); v <= level {
		t.Errorf("retrigger restarted from %v, want to continue above %v", v, level)
	}
}

func TestEnvelopeRelease(t *testing.T) {
	t.Parallel()

	e := New(1000)
	e.SetParams(5, 5, 0.8, 0, 1000)

	e.Release()
	if e.State() != Idle {
		t.Fatalf("Release on idle envelope moved to %v", e.State())
	}

	e.Trigger()
	e.Next()
	e.Release()
	e.Next()
	if e.State() != Idle || e.Output() != 0 {
		t.Errorf("instant release left %v at %v", e.State(), e.Output())
	}
}

func TestSustainLevelClamped(t *testing.T) {
	t.Parallel()

	e := New(1000)
	e.SetParams(0, 0, 3, 0, 10)
	e.Trigger()
	e.Next()
	if v := e.Next(); v != 1 {
		t.Errorf("sustain clamped to %v, want 1", v)
	}
}
