package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/midiin"
	"github.com/icco/pocketseq/internal/tui"
)

const reclaimInterval = 100 * time.Millisecond

var (
	playHeadless bool
	playBPM      float64
	playPattern  string
	playMIDIIn   string
	playVirtual  bool
	playStopped  bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the sequencer",
	Long: `Start the sequencer with the interactive step editor.

Audio goes to the system output. With --headless the editor is not shown and
audio is rendered and discarded in real time, which is useful for driving the
engine from MIDI only.

Example:
  pocketseq play --pattern beat.mid --midi-in "My Keyboard"
  pocketseq play --midi-in "Pocketseq" --virtual --headless
`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playHeadless, "headless", false, "run without audio output or editor")
	playCmd.Flags().Float64Var(&playBPM, "bpm", 0, "tempo, overriding the kit and pattern")
	playCmd.Flags().StringVarP(&playPattern, "pattern", "p", "", "MIDI pattern file to load and save")
	playCmd.Flags().StringVar(&playMIDIIn, "midi-in", "", "MIDI input port to play tracks from")
	playCmd.Flags().BoolVar(&playVirtual, "virtual", false, "create --midi-in as a virtual port")
	playCmd.Flags().BoolVar(&playStopped, "stopped", false, "do not start the clock")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	log, closeLog, err := initLogger(!playHeadless)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var dev hw.Device
	if playHeadless {
		dev = hw.NewLoopback(cfg.SampleRate, len(cfg.Tracks))
	} else {
		dev, err = hw.NewOto(cfg.SampleRate, len(cfg.Tracks), cfg.BufferFrames)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn("failed to close audio device", "err", err)
		}
	}()

	s, err := newSession(cfg, playPattern, playBPM, dev, clock.System(), log)
	if err != nil {
		return err
	}
	defer s.close(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.eng.Run(ctx) })
	g.Go(func() error { return s.eng.RunReclaimer(ctx, reclaimInterval) })

	var stats tui.MIDIStats
	if playMIDIIn != "" {
		in, closeIn, err := midiin.Open(playMIDIIn, playVirtual)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer func() {
			if err := closeIn(); err != nil {
				log.Warn("failed to close MIDI input", "err", err)
			}
		}()

		sounds := make([]instrument.TrackParameters, len(s.specs))
		for i, sp := range s.specs {
			sounds[i] = sp.Params
		}
		m := midiin.NewMapper(s.eng, sounds)
		stats = m.Stats
		g.Go(func() error { return midiin.Listen(ctx, in, m, log) })
	}

	if !playStopped {
		s.eng.Push(event.Start())
	}

	if playHeadless {
		lb := dev.(*hw.Loopback)
		g.Go(func() error { return drain(ctx, lb, cfg.BufferFrames) })
	} else {
		g.Go(func() error {
			defer cancel()
			return runTUI(ctx, s.eng, stats, log)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func runTUI(ctx context.Context, eng *engine.Engine, stats tui.MIDIStats, log *slog.Logger) error {
	m := tui.New(eng, tui.Options{
		PatternPath: playPattern,
		MIDI:        stats,
		Logger:      log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// drain consumes the loopback device at the speed a sound card would.
func drain(ctx context.Context, lb *hw.Loopback, frames int) error {
	period := time.Duration(frames) * time.Second / time.Duration(lb.SampleRate())
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]hw.Frame, frames)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lb.Pull(buf)
		}
	}
}
