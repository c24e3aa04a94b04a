package cmd

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/hw"
)

var (
	renderBars    int
	renderTail    float64
	renderBPM     float64
	renderPattern string
	renderOut     string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a pattern to a WAV file",
	Long: `Render the kit and pattern offline, faster than real time, to a 16-bit stereo
WAV file. The clock runs on sample time so the result is identical on every run.

Example:
  pocketseq render --pattern beat.mid --bars 8 -o beat.wav
`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().IntVar(&renderBars, "bars", 4, "number of bars to render")
	renderCmd.Flags().Float64Var(&renderTail, "tail", 0.5, "seconds rendered after the last bar to let voices release")
	renderCmd.Flags().Float64Var(&renderBPM, "bpm", 0, "tempo, overriding the kit and pattern")
	renderCmd.Flags().StringVarP(&renderPattern, "pattern", "p", "", "MIDI pattern file")
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "out.wav", "WAV file to write")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	log, closeLog, err := initLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if renderPattern != "" {
		if _, err := os.Stat(renderPattern); err != nil {
			return err
		}
	}

	lb := hw.NewLoopback(cfg.SampleRate, len(cfg.Tracks))
	src := clock.NewManual(uint64(cfg.SampleRate))
	s, err := newSession(cfg, renderPattern, renderBPM, lb, src, log)
	if err != nil {
		return err
	}
	defer s.close(log)

	frames, err := renderFile(s.eng, lb, src, renderOut, cfg.BufferFrames, renderBars, renderTail)
	if err != nil {
		return err
	}
	log.Info("render finished", "path", renderOut, "frames", frames, "bars", renderBars)
	return nil
}

// renderFile renders to a new WAV file at path. The file is complete only
// when it returns nil.
func renderFile(eng *engine.Engine, lb *hw.Loopback, src *clock.Manual, path string, bufferFrames, bars int, tail float64) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	frames, err := render(eng, lb, src, wav.NewEncoder(f, lb.SampleRate(), 16, 2, 1), bufferFrames, bars, tail)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	return frames, err
}

// render plays bars of the pattern followed by tail seconds of release and
// writes the mix to enc, which it closes. It returns the frames written.
func render(eng *engine.Engine, lb *hw.Loopback, src *clock.Manual, enc *wav.Encoder, bufferFrames, bars int, tail float64) (int, error) {
	rate := lb.SampleRate()
	snap := eng.Clock().Snapshot()
	beats := bars * snap.Position.BeatsPerBar
	playFrames := int(float64(beats) * 60 / snap.BPM * float64(rate))
	total := playFrames + int(tail*float64(rate))

	buf := make([]hw.Frame, bufferFrames)
	out := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           make([]int, 2*bufferFrames),
		SourceBitDepth: 16,
	}

	eng.Push(event.Start())
	written := 0
	for written < total {
		if written >= playFrames && written-len(buf) < playFrames {
			eng.Push(event.Stop())
		}
		eng.Iterate()

		n := min(len(buf), total-written)
		lb.Pull(buf[:n])
		src.Add(uint64(n))

		out.Data = out.Data[:2*n]
		for i, fr := range buf[:n] {
			out.Data[2*i] = int(fr[0])
			out.Data[2*i+1] = int(fr[1])
		}
		if err := enc.Write(out); err != nil {
			return written, fmt.Errorf("write wav: %w", err)
		}
		written += n
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("close wav: %w", err)
	}
	return written, nil
}
