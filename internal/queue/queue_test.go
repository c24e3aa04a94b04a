package queue

import (
	"runtime"
	"sync"
	"testing"
)

type payload struct {
	id    int
	track int
	value float64
	name  [8]byte
}

func mkPayload(i int) payload {
	p := payload{id: i, track: i % 7, value: float64(i) * 1.25}
	copy(p.name[:], []byte{byte(i), byte(i >> 8), 0xAA, 0x55})
	return p
}

func TestMPSCCapacity(t *testing.T) {
	t.Parallel()

	const capacity = 16
	q := NewMPSC[payload](capacity)

	if q.Cap() != capacity-1 {
		t.Fatalf("Cap() = %d, want %d", q.Cap(), capacity-1)
	}

	for i := 0; i < capacity-1; i++ {
		if !q.Push(mkPayload(i)) {
			t.Fatalf("Push %d failed before the queue was full", i)
		}
	}
	if q.Push(mkPayload(99)) {
		t.Fatal("Push succeeded on a full queue")
	}
	if q.Len() != capacity-1 {
		t.Errorf("Len() = %d, want %d", q.Len(), capacity-1)
	}

	var p payload
	if !q.Pop(&p) || p.id != 0 {
		t.Fatalf("Pop = %+v, want id 0", p)
	}
	if !q.Push(mkPayload(100)) {
		t.Fatal("Push failed after one Pop")
	}
	if q.Push(mkPayload(101)) {
		t.Fatal("second Push after one Pop succeeded")
	}
}

func TestMPSCWraparound(t *testing.T) {
	t.Parallel()

	const capacity = 16
	q := NewMPSC[payload](capacity)

	next := 0
	for i := 0; i < capacity-1; i++ {
		q.Push(mkPayload(next))
		next++
	}

	want := 0
	var p payload
	for i := 0; i < 5; i++ {
		if !q.Pop(&p) {
			t.Fatalf("Pop %d failed", i)
		}
		if p != mkPayload(want) {
			t.Fatalf("Pop %d = %+v, want %+v", i, p, mkPayload(want))
		}
		want++
	}

	for i := 0; i < 5; i++ {
		if !q.Push(mkPayload(next)) {
			t.Fatalf("Push %d after wrap failed", i)
		}
		next++
	}

	for q.Pop(&p) {
		if p != mkPayload(want) {
			t.Fatalf("drain: got %+v, want %+v", p, mkPayload(want))
		}
		want++
	}
	if want != next {
		t.Errorf("drained up to %d, want %d", want, next)
	}
	if q.Pop(&p) {
		t.Error("Pop succeeded on an empty queue")
	}
}

func TestMPSCConcurrentProducers(t *testing.T) {
	t.Parallel()

	const (
		producers = 4
		perProd   = 5000
	)
	q := NewMPSC[payload](64)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; {
				if q.Push(payload{id: i, track: p}) {
					i++
				} else {
					runtime.Gosched()
				}
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var lastSeen [producers]int
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	received := 0
	var v payload
	for received < producers*perProd {
		if !q.Pop(&v) {
			runtime.Gosched()
			continue
		}
		if v.id != lastSeen[v.track]+1 {
			t.Fatalf("producer %d: got %d after %d", v.track, v.id, lastSeen[v.track])
		}
		lastSeen[v.track] = v.id
		received++
	}
	<-done

	if q.Pop(&v) {
		t.Errorf("extra element %+v after draining", v)
	}
}

func TestSPSCTransfer(t *testing.T) {
	t.Parallel()

	const n = 20000
	q := NewSPSC[*payload](8)

	go func() {
		for i := 0; i < n; {
			p := mkPayload(i)
			if q.Push(&p) {
				i++
			} else {
				runtime.Gosched()
			}
		}
	}()

	var got *payload
	for i := 0; i < n; {
		if !q.Pop(&got) {
			runtime.Gosched()
			continue
		}
		if got.id != i {
			t.Fatalf("got %d, want %d", got.id, i)
		}
		i++
	}
}

func TestSPSCClearsPoppedSlot(t *testing.T) {
	t.Parallel()

	q := NewSPSC[*payload](4)
	p := mkPayload(1)
	q.Push(&p)

	var got *payload
	q.Pop(&got)
	if q.r.buf[0] != nil {
		t.Error("popped slot still references the element")
	}
}

func TestMinimumCapacity(t *testing.T) {
	t.Parallel()

	q := NewSPSC[int](0)
	if q.Cap() != 1 {
		t.Fatalf("Cap() = %d, want 1", q.Cap())
	}
	if !q.Push(1) || q.Push(2) {
		t.Error("single-slot queue accepted the wrong number of pushes")
	}
}
