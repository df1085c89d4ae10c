package snapio

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/phil-mansfield/advect/lib/field"
)

// Memory is a Provider over snapshots that are already in memory. It's used
// for testing and for embedding the tracer in programs that generate their
// own fields.
type Memory struct {
	snaps []*field.Snapshot
	reads atomic.Int64
}

// Type assertion
var _ Provider = &Memory{}

// NewMemory creates a Memory provider. The snapshots are sorted by time and
// no two may share a time.
func NewMemory(snaps ...*field.Snapshot) (*Memory, error) {
	sorted := append([]*field.Snapshot{}, snaps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time == sorted[i-1].Time {
			return nil, fmt.Errorf("Two snapshots have the time %g.",
				sorted[i].Time)
		}
	}
	return &Memory{snaps: sorted}, nil
}

// Sampled creates a Memory provider by sampling fn on the same grid at each
// of the given times.
func Sampled(
	origin, spacing [3]float64, dims [3]int,
	times []float64, fn field.VelocityFunc,
) (*Memory, error) {
	snaps := make([]*field.Snapshot, len(times))
	for i, t := range times {
		b, err := field.Sample(origin, spacing, dims, t, fn, nil, nil)
		if err != nil {
			return nil, err
		}
		snaps[i] = &field.Snapshot{Time: t, Blocks: []*field.Block{b}}
	}
	return NewMemory(snaps...)
}

func (m *Memory) Times() ([]float64, error) {
	out := make([]float64, len(m.snaps))
	for i := range m.snaps {
		out[i] = m.snaps[i].Time
	}
	return out, nil
}

func (m *Memory) Snapshot(i int) (*field.Snapshot, error) {
	if i < 0 || i >= len(m.snaps) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoSnapshot, i, len(m.snaps))
	}
	m.reads.Add(1)
	return m.snaps[i], nil
}

// Reads returns the number of successful calls to Snapshot.
func (m *Memory) Reads() int { return int(m.reads.Load()) }
