// Package midiin plays tracks from an external MIDI input.
//
// A note on channel n triggers track n with the note applied to the track's
// sound. Transport messages start, stop and resume the clock, and All Notes
// Off (CC 123) stops it.
package midiin

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/pocketseq/internal/event"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/pattern"
)

const ccAllNotesOff = 123

// System real-time status bytes.
const (
	statusStart    = 0xFA
	statusContinue = 0xFB
	statusStop     = 0xFC
)

// Pusher accepts events for the audio goroutine.
type Pusher interface {
	Push(ev event.Event) bool
}

// Mapper turns MIDI messages into engine events.
type Mapper struct {
	out    Pusher
	sounds []instrument.TrackParameters

	received atomic.Uint64
	dropped  atomic.Uint64
	last     atomic.Pointer[string]
}

// NewMapper returns a mapper playing sounds[n] for notes on channel n.
func NewMapper(out Pusher, sounds []instrument.TrackParameters) *Mapper {
	return &Mapper{out: out, sounds: sounds}
}

// Map converts one message. ok is false for messages with no event.
func (m *Mapper) Map(msg midi.Message) (ev event.Event, ok bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if int(ch) >= len(m.sounds) {
			return ev, false
		}
		p := pattern.WithNote(m.sounds[ch], key)
		p.Velocity = float64(vel) / 127
		return event.Trigger(int(ch), p), true
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == ccAllNotesOff {
			return event.Stop(), true
		}
	case len(msg) == 1:
		switch msg[0] {
		case statusStart:
			return event.Start(), true
		case statusContinue:
			return event.Resume(), true
		case statusStop:
			return event.Stop(), true
		}
	}
	return ev, false
}

// Receive maps msg and pushes the result. It is the listener callback.
func (m *Mapper) Receive(msg midi.Message, _ int32) {
	m.received.Add(1)
	s := msg.String()
	m.last.Store(&s)

	ev, ok := m.Map(msg)
	if !ok {
		return
	}
	if !m.out.Push(ev) {
		m.dropped.Add(1)
	}
}

// Stats reports the messages received, the events dropped on a full queue,
// and a description of the latest message.
func (m *Mapper) Stats() (received, dropped uint64, last string) {
	if p := m.last.Load(); p != nil {
		last = *p
	}
	return m.received.Load(), m.dropped.Load(), last
}

// InPorts lists the names of the available input ports.
func InPorts() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Open opens the named input port. With virtual set it creates a virtual
// port of that name instead, visible to other applications as an output.
// The returned close function releases the port and its driver.
func Open(name string, virtual bool) (drivers.In, func() error, error) {
	if !virtual {
		in, err := midi.FindInPort(name)
		if err != nil {
			return nil, nil, fmt.Errorf("find MIDI input %q: %w", name, err)
		}
		if err := in.Open(); err != nil {
			return nil, nil, fmt.Errorf("open MIDI input %q: %w", name, err)
		}
		return in, in.Close, nil
	}

	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	in, err := drv.OpenVirtualIn(name)
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("failed to create virtual MIDI port: %w", err)
	}
	return in, func() error {
		err := in.Close()
		drv.Close()
		return err
	}, nil
}

// Listen feeds messages from in to m until ctx is done.
func Listen(ctx context.Context, in drivers.In, m *Mapper, log *slog.Logger) error {
	stop, err := midi.ListenTo(in, m.Receive)
	if err != nil {
		return fmt.Errorf("failed to listen to MIDI port: %w", err)
	}
	log.Info("listening for MIDI", "port", in.String())

	<-ctx.Done()
	stop()

	received, dropped, _ := m.Stats()
	log.Info("MIDI input closed", "port", in.String(), "received", received, "dropped", dropped)
	return nil
}
