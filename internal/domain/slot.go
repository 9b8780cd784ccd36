package domain

// SlotSnapshot is a point-in-time view of the worker slot table.
type SlotSnapshot struct {
	Capacity int    `json:"capacity"`
	InUse    int    `json:"in_use"`
	Slots    []bool `json:"slots"`
}

// Saturated reports whether every slot was occupied when the snapshot was taken.
func (s SlotSnapshot) Saturated() bool {
	return s.Capacity > 0 && s.InUse >= s.Capacity
}

// SlotSource exposes read-only slot occupancy to reporting components.
type SlotSource interface {
	Snapshot() SlotSnapshot
}

// SaturationSink is told whether every slot is occupied.
type SaturationSink interface {
	SetSaturated(saturated bool)
}
