package domain

import (
	"maps"
	"slices"
)

// CounterName identifies a counter. Names are compared byte for byte.
type CounterName string

// Snapshot maps every existing counter to its current value. A missing key
// means the counter does not exist.
type Snapshot map[CounterName]int64

// Clone returns an independent copy of s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}

// Names returns the counter names in ascending order.
func (s Snapshot) Names() []CounterName {
	names := slices.Collect(maps.Keys(s))
	slices.Sort(names)
	return names
}
