package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/config"
	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/engine"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/pattern"
	"github.com/icco/pocketseq/internal/sample"
)

// session is an engine built from a kit file and an optional pattern.
type session struct {
	cfg   *config.Config
	reg   *decode.Registry
	bank  *sample.Bank
	specs []engine.TrackSpec
	eng   *engine.Engine
}

// applyPattern loads a pattern file into specs and returns its tempo. A
// missing file is not an error: it is created on the first save.
func applyPattern(path string, specs []engine.TrackSpec, log *slog.Logger) (*pattern.Pattern, error) {
	spb := make([]int, len(specs))
	for i, s := range specs {
		spb[i] = s.StepsPerBeat
	}
	p, err := pattern.Load(path, spb)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("pattern file does not exist yet", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Apply(specs)
	log.Info("pattern loaded", "path", path, "bpm", p.BPM, "beats_per_bar", p.BeatsPerBar)
	return p, nil
}

// newSession validates cfg, loads its samples and pattern, and builds an
// engine playing on dev with time from src.
func newSession(cfg *config.Config, patternPath string, bpmOverride float64, dev hw.Device, src clock.Source, log *slog.Logger) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs, err := cfg.TrackSpecs()
	if err != nil {
		return nil, err
	}

	bpm, beatsPerBar := cfg.BPM, cfg.BeatsPerBar
	if patternPath != "" {
		p, err := applyPattern(patternPath, specs, log)
		if err != nil {
			return nil, err
		}
		if p != nil {
			bpm, beatsPerBar = p.BPM, p.BeatsPerBar
		}
	}
	if bpmOverride > 0 {
		bpm = bpmOverride
	}

	s := &session{cfg: cfg, reg: decode.Default(), bank: &sample.Bank{}, specs: specs}
	if err := cfg.LoadSamples(s.reg, s.bank, log); err != nil {
		log.Warn("some samples failed to load", "err", err)
	}

	clk := clock.New(src, bpm)
	clk.Lock()
	clk.SetBeatsPerBar(beatsPerBar)
	clk.Unlock()

	s.eng, err = engine.New(dev, clk, s.bank, specs, cfg.EngineOptions(log))
	if err != nil {
		s.bank.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return s, nil
}

// close releases the samples left after the engine has stopped.
func (s *session) close(log *slog.Logger) {
	s.eng.Reclaim()
	if err := s.bank.Close(); err != nil {
		log.Warn("failed to close sample bank", "err", err)
	}
}
