package tui

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/decode/decodetest"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/pattern"
	"github.com/icco/pocketseq/internal/sample"
)

func newEngine(t *testing.T, opts engine.Options) *engine.Engine {
	t.Helper()

	drums := instrument.Default(instrument.Sampler)
	drums.Instrument = instrument.SamplerVariant(instrument.SamplerParams{Slot: 3})
	specs := []engine.TrackSpec{
		{Name: "lead", Steps: 16, StepsPerBeat: 4, Params: instrument.Default(instrument.Synth)},
		{Name: "drums", Steps: 16, StepsPerBeat: 4, Params: drums},
	}
	opts.BufferFrames = 64
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := engine.New(hw.NewLoopback(8000, 4), clock.New(clock.NewManual(1_000_000), 120), &sample.Bank{}, specs, opts)
	if err != nil {
		t.Fatalf("Error creating engine: %v", err)
	}
	return e
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends keys, lets the engine apply the resulting events and
// refreshes the model.
func press(m *Model, e *engine.Engine, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(key(k))
	}
	e.Iterate()
	m.Update(tickMsg(time.Now()))
	return cmd
}

func TestKeysEditTheGrid(t *testing.T) {
	t.Parallel()

	e := newEngine(t, engine.Options{})
	path := filepath.Join(t.TempDir(), "grid.mid")
	m := New(e, Options{Registry: decode.Default(), Dir: t.TempDir(), PatternPath: path})

	press(m, e, " ")
	if !m.snap.Tracks[0].Steps[0].Active {
		t.Fatal("space did not activate step 1")
	}

	press(m, e, "l", "l", " ", "w", "w")
	st := m.snap.Tracks[0].Steps[2]
	if !st.Active || pattern.NoteOf(st.Params) != 62 {
		t.Errorf("step 3 = active %v note %d, want active note 62", st.Active, pattern.NoteOf(st.Params))
	}

	press(m, e, "+", "+")
	if m.snap.Clock.BPM != 130 {
		t.Errorf("BPM = %v, want 130", m.snap.Clock.BPM)
	}

	press(m, e, "]")
	if n := m.snap.Clock.Position.BeatsPerBar; n != 5 {
		t.Errorf("beats per bar = %d, want 5", n)
	}

	press(m, e, "j", "m", ".", "}")
	drums := m.snap.Tracks[1]
	if !drums.Muted || len(drums.Steps) != 17 || drums.StepsPerBeat != 8 {
		t.Errorf("drums = muted %v, %d steps, %d per beat", drums.Muted, len(drums.Steps), drums.StepsPerBeat)
	}

	press(m, e, "k", "c")
	for i, st := range m.snap.Tracks[0].Steps {
		if st.Active {
			t.Errorf("step %d still active after clear", i+1)
		}
	}

	press(m, e, "p")
	if m.snap.Clock.Status != clock.Playing {
		t.Errorf("status = %v after p, want Playing", m.snap.Clock.Status)
	}
	press(m, e, "P")
	if m.snap.Clock.Status != clock.Paused {
		t.Errorf("status = %v after P, want Paused", m.snap.Clock.Status)
	}
	press(m, e, "p")
	if m.snap.Clock.Status != clock.Stopped {
		t.Errorf("status = %v after second p, want Stopped", m.snap.Clock.Status)
	}

	if cmd := press(m, e, "q"); cmd == nil {
		t.Error("q did not quit")
	}
}

func TestSavePattern(t *testing.T) {
	t.Parallel()

	e := newEngine(t, engine.Options{})
	path := filepath.Join(t.TempDir(), "grid.mid")
	m := New(e, Options{Dir: t.TempDir(), PatternPath: path})

	press(m, e, "l", "l", "l", "l", " ")
	press(m, e, "ctrl+s")
	if !strings.HasPrefix(m.message, "Saved") {
		t.Fatalf("message = %q", m.message)
	}

	p, err := pattern.Load(path, []int{4, 4})
	if err != nil {
		t.Fatalf("Error loading pattern: %v", err)
	}
	if len(p.Tracks[0].Steps) != 16 || !p.Tracks[0].Steps[4].Active {
		t.Errorf("saved lead = %+v", p.Tracks[0].Steps)
	}

	m.opts.PatternPath = ""
	press(m, e, "ctrl+s")
	if !strings.Contains(m.message, "No pattern file") {
		t.Errorf("message = %q", m.message)
	}
}

func TestLoadSampleFromBrowser(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	decodetest.WriteWAV(t, filepath.Join(dir, "kick.wav"), 8000, 16, 1, make([]int, 800))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600); err != nil {
		t.Fatalf("Error writing file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("Error creating directory: %v", err)
	}

	e := newEngine(t, engine.Options{})
	m := New(e, Options{Registry: decode.Default(), Dir: dir})

	// The drums track plays slot 3.
	m.Update(key("j"))
	m.Update(key("b"))
	if m.mode != browserMode || m.slot != 3 {
		t.Fatalf("mode %v slot %d, want browser on slot 3", m.mode, m.slot)
	}
	names := make([]string, len(m.browser.files))
	for i, f := range m.browser.files {
		names[i] = f.name
	}
	if got := strings.Join(names, " "); got != ".. kick.wav sub" {
		t.Fatalf("browser lists %q", got)
	}

	m.Update(key("down"))
	_, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("enter on a file did not start loading")
	}
	m.Update(cmd())
	e.Iterate()

	s := e.Bank().Get(3)
	if s == nil || s.Name() != "kick.wav" {
		t.Fatalf("slot 3 = %v", s)
	}
	if m.mode != sequencerMode {
		t.Error("browser did not close after loading")
	}

	if got := m.slotName(); got != "kick.wav (0.10s)" {
		t.Errorf("slotName = %q", got)
	}
	if s.Refs() != 1 {
		t.Errorf("sample refs = %d after describing the slot, want 1", s.Refs())
	}
}

func TestFullQueueReleasesSample(t *testing.T) {
	t.Parallel()

	e := newEngine(t, engine.Options{EventCapacity: 2})
	st := decodetest.NewConstant(8000, 100, 1000)
	reg := decodetest.Registry(map[string]*decodetest.Stream{"a.mem": st})
	m := New(e, Options{Registry: reg, Dir: t.TempDir()})

	if !e.Push(event.Start()) {
		t.Fatal("first push failed")
	}
	m.mode = browserMode
	m.Update(loadSample(reg, 0, "a.mem")())

	if st.Closed() != 1 {
		t.Errorf("stream closed %d times, want 1", st.Closed())
	}
	if m.mode != browserMode || !strings.Contains(m.browser.message, "queue full") {
		t.Errorf("mode %v message %q", m.mode, m.browser.message)
	}
}

func TestBrowserViewport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 30; i++ {
		name := filepath.Join(dir, "hit_"+string(rune('a'+i%26))+string(rune('0'+i/26))+".wav")
		if err := os.WriteFile(name, nil, 0o600); err != nil {
			t.Fatalf("Error creating test file: %v", err)
		}
	}

	b := newBrowser(decode.Default(), dir)
	const height = 20
	n := visibleLines(height)

	for i := 0; i < n+5; i++ {
		b.down(height)
	}
	if want := b.cursor - n + 1; b.viewportTop != want {
		t.Errorf("viewportTop = %d, want %d", b.viewportTop, want)
	}

	for b.cursor > 2 {
		b.up()
	}
	if b.viewportTop != 2 {
		t.Errorf("viewportTop = %d after scrolling up, want 2", b.viewportTop)
	}

	b.cursor = 100
	b.viewportTop = 50
	b.loadFiles()
	if b.cursor >= len(b.files) || b.viewportTop > b.cursor {
		t.Errorf("cursor %d viewport %d for %d files", b.cursor, b.viewportTop, len(b.files))
	}
}

func TestSignalVisualizer(t *testing.T) {
	t.Parallel()

	tracks := []engine.TrackState{{Name: "lead"}, {Name: "drums"}}
	history := [][]float64{make([]float64, historyLength), make([]float64, historyLength)}
	for x := 50; x < historyLength; x++ {
		history[0][x] = 0.8 * float64(historyLength-x) / float64(historyLength-50)
	}
	for x := 30; x < 40; x++ {
		history[1][x] = 0.3
	}

	output := renderSignalVisualizer(tracks, history)
	for _, want := range []string{"Signal Output", "Ch1 lead", "Ch2 drums", "│", "└", "┘", "past", "now", "█"} {
		if !strings.Contains(output, want) {
			t.Errorf("output does not contain %q:\n%s", want, output)
		}
	}
}

func TestMetersFollowLevels(t *testing.T) {
	t.Parallel()

	e := newEngine(t, engine.Options{})
	m := New(e, Options{Dir: t.TempDir()})

	e.Push(event.Trigger(0, instrument.Default(instrument.Synth)))
	e.Iterate()
	lb := e.Device().(*hw.Loopback)
	lb.Pull(make([]hw.Frame, 64))

	for i := 0; i < 10; i++ {
		m.Update(tickMsg(time.Now()))
	}
	if m.levels[0] <= 0 {
		t.Errorf("lead meter = %v, want it to rise", m.levels[0])
	}
	if m.levels[1] != 0 {
		t.Errorf("drums meter = %v, want 0", m.levels[1])
	}
	if m.history[0][historyLength-1] != m.levels[0] {
		t.Error("history does not end with the current level")
	}
}
