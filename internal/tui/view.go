package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/pattern"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8800"))

	meterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))
)

var sparks = []rune(" ▁▂▃▄▅▆▇█")

func (m *Model) View() string {
	switch m.mode {
	case browserMode:
		return m.viewBrowser()
	default:
		return m.viewSequencer()
	}
}

func (m *Model) viewSequencer() string {
	var b strings.Builder
	c := m.snap.Clock

	b.WriteString(titleStyle.Render("POCKETSEQ") + "\n\n")
	fmt.Fprintf(&b, "BPM: %.0f  Bar: %d/%d  Beat: %d\n",
		c.BPM, c.Position.Bar+1, c.Position.BeatsPerBar, c.Position.Beat+1)
	b.WriteString(renderClockBar(c) + "\n\n")

	nameStyle := lipgloss.NewStyle().Width(10).Align(lipgloss.Left)
	b.WriteString(nameStyle.Render("Track"))
	b.WriteString(nameStyle.Render("Sound"))
	b.WriteString("\n")

	playing := c.Status != clock.Stopped
	for y, tr := range m.snap.Tracks {
		b.WriteString(m.renderTrack(y, tr, playing, nameStyle))
		b.WriteString("\n")
	}

	if st, ok := m.current(); ok {
		b.WriteString("\n" + subtitleStyle.Render(describeStep(m.cursorX, st)) + "\n")
	}

	b.WriteString("\n" + renderSignalVisualizer(m.snap.Tracks, m.history) + "\n")

	status := fmt.Sprintf("queued %d  dropped %d", m.snap.Queued, m.snap.Dropped)
	if m.opts.MIDI != nil {
		received, dropped, last := m.opts.MIDI()
		status += fmt.Sprintf("  midi %d/%d %s", received, dropped, last)
	}
	b.WriteString(subtitleStyle.Render(status) + "\n")
	if m.message != "" {
		b.WriteString(errorStyle.Render(m.message) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("Navigation: ↑↓←→ or hjkl • Space: toggle step • enter: audition • w/s: change note"))
	b.WriteString("\n" + helpStyle.Render("+/-: tempo • [/]: beats per bar • ,/.: length • {/}: resolution • c: clear track"))
	b.WriteString("\n" + helpStyle.Render("p: play/stop • P: pause • r: rewind • m: mute • S: solo • b: samples • ctrl+s: save • q: quit"))
	return b.String()
}

func (m *Model) renderTrack(y int, tr engine.TrackState, playing bool, nameStyle lipgloss.Style) string {
	var b strings.Builder

	label := tr.Name
	switch {
	case tr.Solo:
		label += " S"
	case tr.Muted:
		label += " M"
	}
	sound := tr.Kind.String()
	if len(tr.Steps) > 0 {
		sound = instrument.NoteName(pattern.NoteOf(tr.Steps[0].Params))
	}

	switch {
	case y == m.cursorY:
		b.WriteString(selectedStyle.Render(nameStyle.Render(label)))
	case tr.Muted:
		b.WriteString(mutedStyle.Render(nameStyle.Render(label)))
	default:
		b.WriteString(nameStyle.Render(label))
	}
	b.WriteString(nameStyle.Render(sound))

	for i, st := range tr.Steps {
		cell := "·"
		if st.Active {
			cell = "●"
		}

		style := lipgloss.NewStyle()
		if y == m.cursorY && i == m.cursorX {
			style = style.Background(lipgloss.Color("#7D56F4"))
		}
		switch {
		case playing && i == tr.Current:
			style = style.Foreground(lipgloss.Color("#00FF00")).Bold(true)
		case st.Active:
			style = style.Foreground(lipgloss.Color("#FFD700"))
		default:
			style = style.Foreground(lipgloss.Color("#666666"))
		}

		b.WriteString(style.Render(cell))
		if tr.StepsPerBeat > 0 && (i+1)%tr.StepsPerBeat == 0 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func describeStep(i int, st engine.StepInfo) string {
	p := st.Params
	return fmt.Sprintf("Step %d: %s %s vol %.2f pan %+.2f vel %.2f %s",
		i+1, p.Instrument.Kind(), instrument.NoteName(pattern.NoteOf(p)),
		p.Volume, p.Pan, p.Velocity, p.Filter)
}

// renderClockBar shows the position within the current bar.
func renderClockBar(c clock.Snapshot) string {
	const barWidth = 48

	perBar := int64(c.Position.BeatsPerBar * clock.StepsPerBeat)
	filled := 0
	if perBar > 0 {
		filled = int(c.Position.Step % perBar * barWidth / perBar)
	}
	playing := c.Status == clock.Playing

	var bar strings.Builder
	bar.WriteString("Clock: [")
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled && playing:
			bar.WriteString("█")
		case i == filled && playing:
			bar.WriteString("▶")
		default:
			bar.WriteString("─")
		}
	}
	bar.WriteString("] ")
	bar.WriteString(c.Status.String())
	return bar.String()
}

// renderSignalVisualizer draws one sparkline of recent output level per
// track, oldest on the left.
func renderSignalVisualizer(tracks []engine.TrackState, history [][]float64) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Signal Output") + "\n")

	width := historyLength
	if len(history) > 0 {
		width = len(history[0])
	}
	for i, h := range history {
		name := fmt.Sprintf("Ch%d", i+1)
		if i < len(tracks) {
			name = fmt.Sprintf("Ch%d %-6.6s", i+1, tracks[i].Name)
		}
		line := make([]rune, len(h))
		for x, v := range h {
			line[x] = spark(v)
		}
		fmt.Fprintf(&b, "%-11s│%s│\n", name, meterStyle.Render(string(line)))
	}
	fmt.Fprintf(&b, "%-11s└%s┘\n", "", strings.Repeat("─", width))
	fmt.Fprintf(&b, "%-11s past%snow", "", strings.Repeat(" ", max(0, width-7)))
	return b.String()
}

func spark(v float64) rune {
	i := int(v * float64(len(sparks)-1) * 2)
	return sparks[max(0, min(len(sparks)-1, i))]
}

func (m *Model) viewBrowser() string {
	b := m.browser

	s := titleStyle.Render("POCKETSEQ - Load Sample") + "\n\n"
	s += fmt.Sprintf("Slot: %d (</> to change)  Current: %s\n", m.slot, m.slotName())
	s += fmt.Sprintf("Directory: %s\n\n", b.currentDir)

	if len(b.files) == 0 {
		s += "No audio files or directories found.\n"
	} else {
		end := min(len(b.files), b.viewportTop+visibleLines(m.height))
		for i := b.viewportTop; i < end; i++ {
			f := b.files[i]
			cursor := " "
			if i == b.cursor {
				cursor = ">"
			}
			name := fileStyle.Render(f.name)
			if f.isDir {
				name = dirStyle.Render(f.name + "/")
			}
			if i == b.cursor {
				s += selectedStyle.Render(fmt.Sprintf("%s %s", cursor, name)) + "\n"
			} else {
				s += fmt.Sprintf("%s %s\n", cursor, name)
			}
		}
	}

	s += "\n"
	if b.message != "" {
		s += errorStyle.Render(b.message) + "\n"
	}
	s += "\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: open • </>: slot • q: back")
	return s
}

// slotName describes the sample in the selected slot. The extra reference
// keeps it open while it is read even if the audio goroutine swaps it out.
func (m *Model) slotName() string {
	s := m.eng.Bank().Acquire(m.slot)
	if s == nil {
		return "(empty)"
	}
	defer func() {
		if err := s.Release(); err != nil {
			m.log.Warn("failed to release sample", "path", s.Path(), "err", err)
		}
	}()

	secs := 0.0
	if rate := s.SampleRate(); rate > 0 {
		secs = float64(s.Length()) / float64(rate)
	}
	return fmt.Sprintf("%s (%.2fs)", s.Name(), secs)
}
