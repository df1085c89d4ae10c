/*
package cache holds the two snapshots of the velocity field that bracket the
time being integrated, along with the bounding boxes and locators built over
them.
*/
package cache

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/snapio"
)

var (
	// ErrNoTime is returned when the provider can't report its snapshot
	// times.
	ErrNoTime = errors.New("dataset cannot report snapshot times")
	// ErrNoBracket is returned when no pair of snapshots brackets a time.
	ErrNoBracket = errors.New("no snapshots bracket the requested time")
)

// MeshVariance describes how the mesh changes from one snapshot to the next.
// Getting this wrong gives wrong trajectories without any error.
type MeshVariance int

const (
	// Different meshes share nothing, so hints and locators are rebuilt on
	// every fetch.
	Different MeshVariance = iota
	// Static meshes never move, so hints, bounds and locators are all kept.
	Static
	// LinearTransformation meshes move rigidly. Hints are kept, but bounds
	// and locators are rebuilt.
	LinearTransformation
	// SameTopology meshes keep their cells but may deform. Hints are kept,
	// but bounds and locators are rebuilt.
	SameTopology
)

var varianceNames = map[string]MeshVariance{
	"different":             Different,
	"static":                Static,
	"linear_transformation": LinearTransformation,
	"same_topology":         SameTopology,
}

// ParseMeshVariance converts a config string to a MeshVariance.
func ParseMeshVariance(s string) (MeshVariance, error) {
	if s == "" {
		return Different, nil
	}
	v, ok := varianceNames[s]
	if !ok {
		return Different, fmt.Errorf("The mesh variance '%s' is not one of "+
			"'different', 'static', 'linear_transformation', or "+
			"'same_topology'.", s)
	}
	return v, nil
}

func (v MeshVariance) String() string {
	for name, x := range varianceNames {
		if x == v {
			return name
		}
	}
	return "unknown"
}

// Change says what a call to Refresh did to the slots.
type Change int

const (
	// Unchanged means both slots were already correct.
	Unchanged Change = iota
	// Shifted means the later slot moved to the earlier one and only the
	// later slot was fetched.
	Shifted
	// Replaced means both slots were fetched.
	Replaced
)

// Cache is the two-slot temporal cache over a snapio.Provider.
type Cache struct {
	provider snapio.Provider
	kind     field.LocatorKind
	variance MeshVariance
	log      logrus.FieldLogger

	times   []float64
	slots   [2]*field.Slot
	index   [2]int
	fetches int
	epoch   int
}

// New creates an empty cache. log may be nil.
func New(
	p snapio.Provider, kind field.LocatorKind, v MeshVariance,
	log logrus.FieldLogger,
) *Cache {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	c := &Cache{provider: p, kind: kind, variance: v, log: log}
	c.Reset()
	return c
}

// Reset drops both slots and the list of snapshot times. The next Refresh
// rebuilds everything.
func (c *Cache) Reset() {
	c.slots = [2]*field.Slot{}
	c.index = [2]int{-1, -1}
	c.times = nil
	c.epoch++
}

// Variance returns the mesh variance the cache was created with.
func (c *Cache) Variance() MeshVariance { return c.variance }

// Fetches returns the number of snapshots read from the provider.
func (c *Cache) Fetches() int { return c.fetches }

// Epoch increases whenever cached cell hints stop being valid.
func (c *Cache) Epoch() int { return c.epoch }

// Times returns the provider's snapshot times.
func (c *Cache) Times() ([]float64, error) {
	if c.times != nil {
		return c.times, nil
	}
	times, err := c.provider.Times()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTime, err.Error())
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: the dataset is empty", ErrNoTime)
	}
	c.times = times
	return times, nil
}

// Bracket returns the indices of the snapshots around t. A time equal to a
// snapshot's time belongs to the interval that ends there. A single snapshot
// is a steady field that brackets every time, so both indices are 0.
func (c *Cache) Bracket(t float64) (i0, i1 int, err error) {
	times, err := c.Times()
	if err != nil {
		return -1, -1, err
	}
	n := len(times)
	if n == 1 {
		return 0, 0, nil
	}
	if t < times[0] || t > times[n-1] {
		return -1, -1, fmt.Errorf("%w: t = %g is outside [%g, %g]",
			ErrNoBracket, t, times[0], times[n-1])
	}

	i1 = sort.SearchFloat64s(times, t)
	if i1 == 0 {
		i1 = 1
	}
	return i1 - 1, i1, nil
}

// Refresh makes the slots bracket t and returns an interpolator over them.
// Calling it again with a time in the same interval fetches nothing.
func (c *Cache) Refresh(t float64) (*field.Interpolator, Change, error) {
	i0, i1, err := c.Bracket(t)
	if err != nil {
		return nil, Unchanged, err
	}

	change := Unchanged
	switch {
	case c.index == [2]int{i0, i1}:
	case c.index[1] == i0 && c.slots[1] != nil:
		next, err := c.fetch(i1, c.slots[1])
		if err != nil {
			return nil, Unchanged, err
		}
		c.slots[0], c.slots[1] = c.slots[1], next
		change = Shifted
	default:
		first, err := c.fetch(i0, c.reusable())
		if err != nil {
			return nil, Unchanged, err
		}
		second := first
		if i1 != i0 {
			if second, err = c.fetch(i1, first); err != nil {
				return nil, Unchanged, err
			}
		}
		c.slots[0], c.slots[1] = first, second
		change = Replaced
	}
	c.index = [2]int{i0, i1}

	if change != Unchanged && c.variance == Different {
		c.epoch++
	}

	in := &field.Interpolator{
		Slots: c.slots, T0: c.times[i0], T1: c.times[i1],
	}
	if i0 == i1 {
		in.Slots[0] = nil
	}
	return in, change, nil
}

// reusable returns a slot whose locator can be shared with a new snapshot.
func (c *Cache) reusable() *field.Slot {
	if c.variance != Static {
		return nil
	}
	return c.slots[1]
}

// fetch reads snapshot i. For static meshes the bounds and locator of like
// are reused.
func (c *Cache) fetch(i int, like *field.Slot) (*field.Slot, error) {
	snap, err := c.provider.Snapshot(i)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %d: %w", i, err)
	}
	snap.Time = c.times[i]
	c.fetches++
	c.log.WithFields(logrus.Fields{
		"snapshot": i, "time": snap.Time, "blocks": len(snap.Blocks),
	}).Debug("Fetched snapshot.")

	if c.variance == Static && like != nil &&
		len(like.Snap.Blocks) == len(snap.Blocks) {
		return &field.Slot{Snap: snap, Boxes: like.Boxes, Locator: like.Locator}, nil
	}
	return field.NewSlot(snap, c.kind), nil
}

// AdjustHints updates a particle's cell hints after a Refresh that made the
// given change.
func (c *Cache) AdjustHints(r *particles.Record, ch Change) {
	switch ch {
	case Unchanged:
	case Shifted:
		if c.variance == Different {
			r.ShiftHints()
		} else {
			r.Hints[0] = r.Hints[1]
		}
	case Replaced:
		if c.variance == Different {
			r.InvalidateHints()
		}
	}
}

// Slots returns the snapshots currently held, skipping empty slots.
func (c *Cache) Slots() []*field.Slot {
	out := []*field.Slot{}
	for s := range c.slots {
		if c.slots[s] == nil || (s == 1 && c.slots[1] == c.slots[0]) {
			continue
		}
		out = append(out, c.slots[s])
	}
	return out
}
