// Package tui is the terminal front end: a step grid editor, transport
// controls, a sample browser and per-track level meters.
//
// The model never touches audio state directly. Edits become events on the
// engine queue and the display is refreshed from engine snapshots.
package tui

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/pattern"
	"github.com/icco/pocketseq/internal/sample"
	"github.com/icco/pocketseq/internal/sequencer"
)

const (
	refreshRate   = 50 * time.Millisecond
	historyLength = 64
	bpmStep       = 5
)

type viewMode int

const (
	sequencerMode viewMode = iota
	browserMode
)

type tickMsg time.Time

// sampleMsg carries the result of loading a sample off the UI goroutine.
type sampleMsg struct {
	slot int
	s    *sample.Sample
	err  error
}

// MIDIStats reports MIDI input activity for the status line.
type MIDIStats func() (received, dropped uint64, last string)

type Options struct {
	Registry    *decode.Registry
	PatternPath string // where ctrl+s saves the grid
	Dir         string // starting directory of the sample browser
	MIDI        MIDIStats
	Logger      *slog.Logger
}

// Model is the bubbletea model.
type Model struct {
	eng  *engine.Engine
	opts Options
	log  *slog.Logger

	mode    viewMode
	browser browserModel
	slot    int

	snap    engine.Snapshot
	cursorX int
	cursorY int
	message string
	width   int
	height  int

	// Meters follow the device levels through a spring so they rise and
	// fall smoothly at the refresh rate.
	spring  harmonica.Spring
	raw     []float32
	levels  []float64
	vels    []float64
	history [][]float64
}

// New returns a model driving eng.
func New(eng *engine.Engine, opts Options) *Model {
	if opts.Registry == nil {
		opts.Registry = decode.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := len(eng.Tracks())
	m := &Model{
		eng:     eng,
		opts:    opts,
		log:     log,
		browser: newBrowser(opts.Registry, opts.Dir),
		snap:    eng.Snapshot(),
		spring:  harmonica.NewSpring(harmonica.FPS(int(time.Second/refreshRate)), 6.0, 0.8),
		raw:     make([]float32, eng.Device().Channels()),
		levels:  make([]float64, n),
		vels:    make([]float64, n),
		history: make([][]float64, n),
	}
	for i := range m.history {
		m.history[i] = make([]float64, historyLength)
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case sampleMsg:
		m.installSample(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case browserMode:
			return m.updateBrowser(msg)
		default:
			return m.updateSequencer(msg)
		}
	}
	return m, nil
}

// refresh pulls a new snapshot and advances the meters one frame.
func (m *Model) refresh() {
	m.snap = m.eng.Snapshot()
	m.eng.Device().Levels(m.raw)
	for i := range m.levels {
		m.levels[i], m.vels[i] = m.spring.Update(m.levels[i], m.vels[i], float64(m.raw[i]))
		m.levels[i] = max(0, m.levels[i])
		h := m.history[i]
		copy(h, h[1:])
		h[len(h)-1] = m.levels[i]
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if n := len(m.snap.Tracks); m.cursorY >= n {
		m.cursorY = n - 1
	}
	if m.cursorY < 0 {
		return
	}
	if n := len(m.snap.Tracks[m.cursorY].Steps); m.cursorX >= n {
		m.cursorX = n - 1
	}
}

// push sends ev to the engine and reports a full queue in the status line.
func (m *Model) push(ev event.Event) bool {
	if !m.eng.Push(ev) {
		m.message = fmt.Sprintf("Event queue full, %v dropped", ev.Type)
		return false
	}
	return true
}

// current returns the step under the cursor.
func (m *Model) current() (engine.StepInfo, bool) {
	if m.cursorY < 0 || m.cursorY >= len(m.snap.Tracks) {
		return engine.StepInfo{}, false
	}
	steps := m.snap.Tracks[m.cursorY].Steps
	if m.cursorX < 0 || m.cursorX >= len(steps) {
		return engine.StepInfo{}, false
	}
	return steps[m.cursorX], true
}

func (m *Model) updateSequencer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	y := m.cursorY
	st, ok := m.current()
	if !ok {
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}
	tr := m.snap.Tracks[y]

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
	case "right", "l":
		if m.cursorX < len(tr.Steps)-1 {
			m.cursorX++
		}
	case "up", "k":
		if m.cursorY > 0 {
			m.cursorY--
		}
	case "down", "j":
		if m.cursorY < len(m.snap.Tracks)-1 {
			m.cursorY++
		}
		m.clampCursor()
	case " ":
		if m.push(event.Toggle(y, m.cursorX)) {
			tr.Steps[m.cursorX].Active = !st.Active
		}
	case "enter":
		m.push(event.Trigger(y, st.Params))
	case "w", "s":
		note := int(pattern.NoteOf(st.Params))
		if msg.String() == "w" {
			note = min(127, note+1)
		} else {
			note = max(0, note-1)
		}
		p := pattern.WithNote(st.Params, uint8(note))
		if m.push(event.Update(y, m.cursorX, p)) {
			tr.Steps[m.cursorX].Params = p
			m.message = fmt.Sprintf("%s step %d: %s", tr.Name, m.cursorX+1, instrument.NoteName(pattern.NoteOf(p)))
		}
	case "c":
		for i := range tr.Steps {
			if tr.Steps[i].Active && m.push(event.Activate(y, i, false)) {
				tr.Steps[i].Active = false
			}
		}
	case "+", "=":
		m.setBPM(m.snap.Clock.BPM + bpmStep)
	case "-", "_":
		m.setBPM(m.snap.Clock.BPM - bpmStep)
	case "]":
		m.setBeatsPerBar(m.snap.Clock.Position.BeatsPerBar + 1)
	case "[":
		m.setBeatsPerBar(m.snap.Clock.Position.BeatsPerBar - 1)
	case ".":
		if n := len(tr.Steps) + 1; n <= sequencer.MaxSteps {
			m.push(event.Resize(y, n))
		}
	case ",":
		if n := len(tr.Steps) - 1; n >= 1 {
			m.push(event.Resize(y, n))
		}
	case "}":
		if n := tr.StepsPerBeat * 2; sequencer.ValidStepsPerBeat(n) {
			m.push(event.StepsPerBeat(y, n))
		}
	case "{":
		if n := tr.StepsPerBeat / 2; sequencer.ValidStepsPerBeat(n) {
			m.push(event.StepsPerBeat(y, n))
		}
	case "p":
		if m.snap.Clock.Status == clock.Stopped {
			m.push(event.Start())
		} else {
			m.push(event.Stop())
		}
	case "P":
		switch m.snap.Clock.Status {
		case clock.Playing:
			m.push(event.Pause())
		case clock.Paused:
			m.push(event.Resume())
		}
	case "r":
		m.push(event.Reset())
	case "m":
		m.push(event.Mute(y, !tr.Muted))
	case "S":
		m.push(event.Solo(y, !tr.Solo))
	case "b":
		m.slot = m.targetSlot(st.Params)
		m.mode = browserMode
		m.browser.message = ""
		m.browser.loadFiles()
	case "ctrl+s":
		m.savePattern()
	}
	return m, nil
}

// targetSlot picks the bank slot the browser loads into: the slot a sampler
// step plays, or the track index for other instruments.
func (m *Model) targetSlot(p instrument.TrackParameters) int {
	if sp, ok := p.Instrument.Sampler(); ok {
		return sp.Slot
	}
	return m.cursorY % sample.MaxSlots
}

func (m *Model) setBPM(bpm float64) {
	bpm = max(clock.MinBPM, min(clock.MaxBPM, bpm))
	if bpm != m.snap.Clock.BPM && m.push(event.BPM(bpm)) {
		m.snap.Clock.BPM = bpm
	}
}

func (m *Model) setBeatsPerBar(n int) {
	if n < clock.MinBeatsPerBar || n > clock.MaxBeatsPerBar {
		return
	}
	if m.push(event.BeatsPerBar(n)) {
		m.snap.Clock.Position.BeatsPerBar = n
	}
}

func (m *Model) savePattern() {
	if m.opts.PatternPath == "" {
		m.message = "No pattern file set, start with --pattern"
		return
	}
	if err := pattern.FromSnapshot(m.eng.Snapshot()).Save(m.opts.PatternPath); err != nil {
		m.message = fmt.Sprintf("Error saving: %v", err)
		m.log.Error("failed to save pattern", "path", m.opts.PatternPath, "err", err)
		return
	}
	m.message = "Saved " + m.opts.PatternPath
}

func (m *Model) updateBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b := &m.browser
	switch msg.String() {
	case "q", "esc":
		m.mode = sequencerMode
	case "up", "k":
		b.up()
	case "down", "j":
		b.down(m.height)
	case "<":
		m.slot = (m.slot + sample.MaxSlots - 1) % sample.MaxSlots
	case ">":
		m.slot = (m.slot + 1) % sample.MaxSlots
	case "enter":
		path, ok := b.enter()
		if !ok {
			return m, nil
		}
		b.message = "Loading " + path
		return m, loadSample(m.opts.Registry, m.slot, path)
	}
	return m, nil
}

func loadSample(reg *decode.Registry, slot int, path string) tea.Cmd {
	return func() tea.Msg {
		s, err := sample.Create(reg, path)
		return sampleMsg{slot: slot, s: s, err: err}
	}
}

// installSample hands a loaded sample to the engine. If the queue is full
// the reference never left the UI and is released here.
func (m *Model) installSample(msg sampleMsg) {
	if msg.err != nil {
		m.browser.message = fmt.Sprintf("Error loading sample: %v", msg.err)
		m.log.Warn("failed to load sample", "slot", msg.slot, "err", msg.err)
		return
	}
	if !m.eng.Push(event.Swap(msg.slot, msg.s)) {
		if err := msg.s.Release(); err != nil {
			m.log.Warn("failed to release sample", "path", msg.s.Path(), "err", err)
		}
		m.browser.message = "Event queue full, try again"
		return
	}
	m.log.Info("sample loaded", "slot", msg.slot, "path", msg.s.Path())
	m.message = fmt.Sprintf("Slot %d: %s", msg.slot, msg.s.Name())
	m.mode = sequencerMode
}
