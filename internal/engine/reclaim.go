package engine

import (
	"context"
	"time"

	"github.com/icco/pocketseq/internal/sample"
)

// Reclaim closes every sample waiting in the retire queue and returns how
// many it closed. Only one goroutine may call it.
func (e *Engine) Reclaim() int {
	var s *sample.Sample
	n := 0
	for e.retire.Pop(&s) {
		if err := s.Close(); err != nil {
			e.log.Warn("close retired sample", "path", s.Path(), "error", err)
		}
		n++
	}
	return n
}

// RunReclaimer drains the retire queue every interval until ctx is done.
func (e *Engine) RunReclaimer(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Reclaim()
			return nil
		case <-ticker.C:
			if n := e.Reclaim(); n > 0 {
				e.log.Debug("closed retired samples", "count", n)
			}
		}
	}
}
