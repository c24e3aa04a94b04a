// Package queue provides the bounded ring buffers used between the audio
// goroutine and the rest of the program.
//
// Both queues keep one slot empty so that full and empty can be told apart
// from the head and tail indices alone. There is no separate count field.
package queue

import (
	"sync"
	"sync/atomic"
)

// ring is a single-producer/single-consumer circular buffer. The producer
// owns tail, the consumer owns head; each side only reads the other's index.
type ring[T any] struct {
	buf  []T
	head atomic.Uint32 // next slot to read
	tail atomic.Uint32 // next slot to write
}

func newRing[T any](capacity int) ring[T] {
	if capacity < 2 {
		capacity = 2
	}
	return ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) next(i uint32) uint32 {
	i++
	if i == uint32(len(r.buf)) {
		return 0
	}
	return i
}

func (r *ring[T]) push(v T) bool {
	tail := r.tail.Load()
	next := r.next(tail)
	if next == r.head.Load() {
		return false
	}
	r.buf[tail] = v
	r.tail.Store(next)
	return true
}

func (r *ring[T]) pop(v *T) bool {
	head := r.head.Load()
	if head == r.tail.Load() {
		return false
	}
	*v = r.buf[head]
	var zero T
	r.buf[head] = zero
	r.head.Store(r.next(head))
	return true
}

func (r *ring[T]) len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail >= head {
		return int(tail - head)
	}
	return len(r.buf) - int(head-tail)
}

// SPSC is a wait-free single-producer/single-consumer queue.
type SPSC[T any] struct {
	r ring[T]
}

// NewSPSC returns a queue with capacity slots, of which capacity-1 are
// usable.
func NewSPSC[T any](capacity int) *SPSC[T] {
	return &SPSC[T]{r: newRing[T](capacity)}
}

// Push appends v. It returns false and drops v when the queue is full. Only
// one goroutine may push.
func (q *SPSC[T]) Push(v T) bool { return q.r.push(v) }

// Pop removes the oldest element into v. It returns false when the queue is
// empty. Only one goroutine may pop.
func (q *SPSC[T]) Pop(v *T) bool { return q.r.pop(v) }

// Len returns the number of queued elements. It is exact only when called
// from the producer or consumer with the other side idle.
func (q *SPSC[T]) Len() int { return q.r.len() }

// Cap returns the number of usable slots.
func (q *SPSC[T]) Cap() int { return len(q.r.buf) - 1 }

// MPSC is a multi-producer/single-consumer queue. Producers are serialized
// by a mutex that the consumer never takes.
type MPSC[T any] struct {
	mu sync.Mutex
	r  ring[T]
}

// NewMPSC returns a queue with capacity slots, of which capacity-1 are
// usable.
func NewMPSC[T any](capacity int) *MPSC[T] {
	return &MPSC[T]{r: newRing[T](capacity)}
}

// Push appends v. It returns false and drops v when the queue is full. Any
// number of goroutines may push.
func (q *MPSC[T]) Push(v T) bool {
	q.mu.Lock()
	ok := q.r.push(v)
	q.mu.Unlock()
	return ok
}

// Pop removes the oldest element into v. Only one goroutine may pop.
func (q *MPSC[T]) Pop(v *T) bool { return q.r.pop(v) }

// Len returns the approximate number of queued elements.
func (q *MPSC[T]) Len() int { return q.r.len() }

// Cap returns the number of usable slots.
func (q *MPSC[T]) Cap() int { return len(q.r.buf) - 1 }
