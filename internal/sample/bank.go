package sample

import (
	"errors"
	"sync"
)

// MaxSlots is the number of sample slots in a bank.
const MaxSlots = 16

// Bank is the slot-indexed set of samples. It owns one reference to every
// sample it holds. The slot array has its own lock, independent of the
// samples' reference counts.
type Bank struct {
	mu    sync.Mutex
	slots [MaxSlots]*Sample
}

// Swap installs s in slot and returns the previous occupant, whose bank
// reference now belongs to the caller. The audio goroutine retires it with
// ReleaseDeferred, anyone else with Release.
func (b *Bank) Swap(slot int, s *Sample) (*Sample, error) {
	if slot < 0 || slot >= MaxSlots {
		return nil, ErrSlot
	}
	b.mu.Lock()
	old := b.slots[slot]
	b.slots[slot] = s
	b.mu.Unlock()
	return old, nil
}

// Get returns the sample in slot, or nil. The returned sample stays valid as
// long as the caller is the only goroutine swapping slots, which holds for
// the audio goroutine. Other goroutines use Acquire.
func (b *Bank) Get(slot int) *Sample {
	if slot < 0 || slot >= MaxSlots {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[slot]
}

// Acquire returns the sample in slot with an extra reference, or nil.
func (b *Bank) Acquire(slot int) *Sample {
	if slot < 0 || slot >= MaxSlots {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slots[slot]
	if s != nil {
		s.Retain()
	}
	return s
}

// Names returns the file name in each slot, empty for free slots.
func (b *Bank) Names() [MaxSlots]string {
	var names [MaxSlots]string
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.slots {
		if s != nil {
			names[i] = s.Name()
		}
	}
	return names
}

// Close empties every slot and releases the bank's references.
func (b *Bank) Close() error {
	b.mu.Lock()
	slots := b.slots
	b.slots = [MaxSlots]*Sample{}
	b.mu.Unlock()

	var errs []error
	for _, s := range slots {
		if s != nil {
			if err := s.Release(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
