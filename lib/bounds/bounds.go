/*
package bounds contains axis-aligned bounding boxes used to describe the
extent of grid blocks and of the partitions owned by each rank.
*/
package bounds

import (
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box. Both faces are inclusive, so a point
// on a shared face between two boxes is contained by both of them.
type Box struct {
	Min, Max [3]float64
}

// Empty returns a box that contains nothing and which acts as the identity
// for Union.
func Empty() Box {
	inf := math.Inf(+1)
	return Box{
		Min: [3]float64{inf, inf, inf},
		Max: [3]float64{-inf, -inf, -inf},
	}
}

// IsEmpty returns true if the box contains no points.
func (b Box) IsEmpty() bool {
	for dim := 0; dim < 3; dim++ {
		if b.Min[dim] > b.Max[dim] {
			return true
		}
	}
	return false
}

// Contains returns true if x is inside b.
func (b Box) Contains(x [3]float64) bool {
	for dim := 0; dim < 3; dim++ {
		if x[dim] < b.Min[dim] || x[dim] > b.Max[dim] {
			return false
		}
	}
	return true
}

// Overlaps returns true if the two boxes share any points.
func (b Box) Overlaps(c Box) bool {
	for dim := 0; dim < 3; dim++ {
		if b.Max[dim] < c.Min[dim] || c.Max[dim] < b.Min[dim] {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both b and c.
func (b Box) Union(c Box) Box {
	out := b
	for dim := 0; dim < 3; dim++ {
		out.Min[dim] = math.Min(b.Min[dim], c.Min[dim])
		out.Max[dim] = math.Max(b.Max[dim], c.Max[dim])
	}
	return out
}

// Pad expands the box by eps in every direction.
func (b Box) Pad(eps float64) Box {
	for dim := 0; dim < 3; dim++ {
		b.Min[dim] -= eps
		b.Max[dim] += eps
	}
	return b
}

// Width returns the extent of the box along each axis.
func (b Box) Width() [3]float64 {
	return [3]float64{
		b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2],
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%g %g %g]-[%g %g %g]",
		b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}

// Enclosing returns the union of all the given boxes.
func Enclosing(boxes []Box) Box {
	out := Empty()
	for i := range boxes {
		out = out.Union(boxes[i])
	}
	return out
}

// AnyContains returns the index of the first box containing x and -1 if no
// box does.
func AnyContains(boxes []Box, x [3]float64) int {
	for i := range boxes {
		if boxes[i].Contains(x) {
			return i
		}
	}
	return -1
}
