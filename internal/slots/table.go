// internal/slots/table.go
package slots

import (
	"errors"
	"fmt"
	"sync"

	"echo-dispatcher/internal/domain"
	"echo-dispatcher/internal/metrics"
)

var (
	// ErrSlotInUse is returned when claiming a slot that already has a holder.
	ErrSlotInUse = errors.New("slot already in use")
	// ErrSlotNotInUse is returned when releasing a slot nobody holds.
	ErrSlotNotInUse = errors.New("slot not in use")
	// ErrSlotOutOfRange is returned for indexes outside 0..capacity-1.
	ErrSlotOutOfRange = errors.New("slot index out of range")
)

// Table is the fixed-size registry of worker slots. The scan and the claim
// happen under the same lock, so two callers never observe the same free index.
type Table struct {
	mu    sync.Mutex
	slots []bool
	inUse int
	sink  domain.SaturationSink
}

// New creates a table with every slot free.
func New(capacity int) *Table {
	if capacity < 1 {
		capacity = 1
	}
	metrics.SlotsCapacity.Set(float64(capacity))
	metrics.SlotsInUse.Set(0)
	return &Table{slots: make([]bool, capacity)}
}

// SetSaturationSink registers sink to be told the current saturation state now
// and again each time the table becomes full or stops being full. The sink is
// called with the table lock held, so it must not call back into the table.
func (t *Table) SetSaturationSink(sink domain.SaturationSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
	if sink != nil {
		sink.SetSaturated(t.inUse == len(t.slots))
	}
}

// Capacity returns the fixed number of slots.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// InUse returns the number of claimed slots.
func (t *Table) InUse() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inUse
}

// FindFreeSlot returns the lowest free index without claiming it.
func (t *Table) FindFreeSlot() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findFreeLocked()
}

// Claim marks slot i in use.
func (t *Table) Claim(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.claimLocked(i)
}

// Acquire finds the lowest free slot and claims it in one step.
func (t *Table) Acquire() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.findFreeLocked()
	if !ok {
		return -1, false
	}
	if err := t.claimLocked(i); err != nil {
		return -1, false
	}
	return i, true
}

// Release marks slot i free. Callers release exactly once per claim.
func (t *Table) Release(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.slots) {
		return fmt.Errorf("release slot %d: %w", i, ErrSlotOutOfRange)
	}
	if !t.slots[i] {
		return fmt.Errorf("release slot %d: %w", i, ErrSlotNotInUse)
	}
	wasFull := t.inUse == len(t.slots)
	t.slots[i] = false
	t.inUse--
	metrics.SlotsInUse.Set(float64(t.inUse))
	if wasFull && t.sink != nil {
		t.sink.SetSaturated(false)
	}
	return nil
}

// Snapshot copies the current occupancy.
func (t *Table) Snapshot() domain.SlotSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	slots := make([]bool, len(t.slots))
	copy(slots, t.slots)
	return domain.SlotSnapshot{
		Capacity: len(t.slots),
		InUse:    t.inUse,
		Slots:    slots,
	}
}

func (t *Table) findFreeLocked() (int, bool) {
	for i, used := range t.slots {
		if !used {
			return i, true
		}
	}
	return -1, false
}

func (t *Table) claimLocked(i int) error {
	if i < 0 || i >= len(t.slots) {
		return fmt.Errorf("claim slot %d: %w", i, ErrSlotOutOfRange)
	}
	if t.slots[i] {
		return fmt.Errorf("claim slot %d: %w", i, ErrSlotInUse)
	}
	t.slots[i] = true
	t.inUse++
	metrics.SlotsInUse.Set(float64(t.inUse))
	if t.inUse == len(t.slots) && t.sink != nil {
		t.sink.SetSaturated(true)
	}
	return nil
}

var _ domain.SlotSource = (*Table)(nil)
