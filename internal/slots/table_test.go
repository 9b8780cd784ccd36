package slots

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestAcquireReturnsLowestFreeSlot(t *testing.T) {
	table := New(3)

	for want := 0; want < 3; want++ {
		got, ok := table.Acquire()
		if !ok {
			t.Fatalf("expected slot %d to be free", want)
		}
		if got != want {
			t.Fatalf("unexpected slot: got %d want %d", got, want)
		}
	}

	if _, ok := table.Acquire(); ok {
		t.Fatalf("expected exhausted table")
	}

	if err := table.Release(1); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, ok := table.Acquire()
	if !ok || got != 1 {
		t.Fatalf("expected released slot 1 to be reused, got %d ok=%v", got, ok)
	}
}

func TestFindFreeSlotDoesNotClaim(t *testing.T) {
	table := New(2)

	i, ok := table.FindFreeSlot()
	if !ok || i != 0 {
		t.Fatalf("unexpected free slot: %d ok=%v", i, ok)
	}
	if table.InUse() != 0 {
		t.Fatalf("find must not claim, in use = %d", table.InUse())
	}
	if err := table.Claim(i); err != nil {
		t.Fatalf("claim: %v", err)
	}
	i, ok = table.FindFreeSlot()
	if !ok || i != 1 {
		t.Fatalf("unexpected free slot after claim: %d ok=%v", i, ok)
	}
}

func TestClaimAndReleaseErrors(t *testing.T) {
	table := New(2)

	if err := table.Claim(0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := table.Claim(0); !errors.Is(err, ErrSlotInUse) {
		t.Fatalf("expected ErrSlotInUse, got %v", err)
	}
	if err := table.Claim(5); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
	if err := table.Release(1); !errors.Is(err, ErrSlotNotInUse) {
		t.Fatalf("expected ErrSlotNotInUse, got %v", err)
	}
	if err := table.Release(-1); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
	if err := table.Release(0); err != nil {
		t.Fatalf("release: %v", err)
	}
	if table.InUse() != 0 {
		t.Fatalf("unexpected in use: %d", table.InUse())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	table := New(3)
	if _, ok := table.Acquire(); !ok {
		t.Fatalf("acquire failed")
	}

	snap := table.Snapshot()
	if snap.Capacity != 3 || snap.InUse != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.Slots[0] || snap.Slots[1] || snap.Slots[2] {
		t.Fatalf("unexpected slots: %+v", snap.Slots)
	}
	if snap.Saturated() {
		t.Fatalf("snapshot should not be saturated")
	}

	snap.Slots[1] = true
	if table.Snapshot().Slots[1] {
		t.Fatalf("snapshot mutation leaked into table")
	}
}

func TestConcurrentAcquireIsExclusive(t *testing.T) {
	const (
		capacity   = 10
		goroutines = 64
		rounds     = 500
	)
	table := New(capacity)
	holders := make([]atomic.Int32, capacity)
	var maxInUse atomic.Int32

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				i, ok := table.Acquire()
				if !ok {
					continue
				}
				if n := holders[i].Add(1); n != 1 {
					t.Errorf("slot %d held by %d workers", i, n)
				}
				if n := int32(table.InUse()); n > maxInUse.Load() {
					maxInUse.Store(n)
				}
				holders[i].Add(-1)
				if err := table.Release(i); err != nil {
					t.Errorf("release %d: %v", i, err)
				}
			}
		}()
	}
	wg.Wait()

	if table.InUse() != 0 {
		t.Fatalf("slots leaked: %d in use", table.InUse())
	}
	if maxInUse.Load() > capacity {
		t.Fatalf("in use exceeded capacity: %d", maxInUse.Load())
	}
}

type saturationLog struct {
	states []bool
}

func (s *saturationLog) SetSaturated(saturated bool) {
	s.states = append(s.states, saturated)
}

func TestSaturationSinkFollowsClaimAndRelease(t *testing.T) {
	table := New(2)
	sink := &saturationLog{}
	table.SetSaturationSink(sink)

	a, _ := table.Acquire()
	if len(sink.states) != 1 || sink.states[0] {
		t.Fatalf("expected only the initial not-saturated state, got %v", sink.states)
	}

	b, _ := table.Acquire()
	if len(sink.states) != 2 || !sink.states[1] {
		t.Fatalf("expected saturated once the last slot is claimed, got %v", sink.states)
	}

	if _, ok := table.Acquire(); ok {
		t.Fatalf("expected exhausted table")
	}
	if err := table.Release(a); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(sink.states) != 3 || sink.states[2] {
		t.Fatalf("expected not saturated after a release from full, got %v", sink.states)
	}

	if err := table.Release(b); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(sink.states) != 3 {
		t.Fatalf("release below capacity should not notify, got %v", sink.states)
	}
}

func TestSetSaturationSinkReportsCurrentState(t *testing.T) {
	table := New(1)
	if _, ok := table.Acquire(); !ok {
		t.Fatalf("expected a free slot")
	}

	sink := &saturationLog{}
	table.SetSaturationSink(sink)
	if len(sink.states) != 1 || !sink.states[0] {
		t.Fatalf("expected the full table to be reported on registration, got %v", sink.states)
	}
}
