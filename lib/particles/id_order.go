package particles

import (
	"math"

	"github.com/phil-mansfield/advect/lib/bounds"
)

// IDOrder is an interface for mapping particle IDs to 3D indices in a
// uniform grid and back.
type IDOrder interface {
	// IDToIndex converts an ID to its 3-index equivalent in the grid.
	IDToIndex(id uint64) [3]int
	// IndexToID converts a 3-index to its ID.
	IndexToID(i [3]int) uint64
	// Span returns the number of grid points along each dimension.
	Span() [3]int
}

// Type assertions
var (
	_ IDOrder = &ZMajorUnigrid{}
)

// ZMajorUnigrid is the IDOrder of a z-major uniform grid, where z varies
// fastest. See the IDOrder interface for documentation of the methods.
type ZMajorUnigrid struct {
	n   int
	n64 uint64
}

// NewZMajorUnigrid returns a z-major uniform grid with width n on each side.
func NewZMajorUnigrid(n int) *ZMajorUnigrid {
	return &ZMajorUnigrid{n, uint64(n)}
}

func (g *ZMajorUnigrid) IDToIndex(id uint64) [3]int {
	return [3]int{
		int(id / (g.n64 * g.n64)),
		int((id / g.n64) % g.n64),
		int(id % g.n64),
	}
}

func (g *ZMajorUnigrid) IndexToID(i [3]int) uint64 {
	return uint64(i[2]) + uint64(i[1])*g.n64 + uint64(i[0])*g.n64*g.n64
}

func (g *ZMajorUnigrid) Span() [3]int { return [3]int{g.n, g.n, g.n} }

// PositionIDs derives seed IDs from seed positions by quantizing them onto
// the grid of an IDOrder stretched over a bounding box. It is used when a
// seed source doesn't supply its own IDs.
type PositionIDs struct {
	order IDOrder
	box   bounds.Box
}

// DefaultPositionResolution is the per-side grid width used for derived
// seed IDs. 2^20 cubed still fits in a uint64.
const DefaultPositionResolution = 1 << 20

// NewPositionIDs creates a PositionIDs over the given box.
func NewPositionIDs(order IDOrder, box bounds.Box) *PositionIDs {
	return &PositionIDs{order, box}
}

// ID returns the ID of the grid cell containing x. Points outside the box are
// clamped onto its faces.
func (p *PositionIDs) ID(x [3]float64) uint64 {
	span := p.order.Span()
	w := p.box.Width()
	idx := [3]int{}
	for dim := 0; dim < 3; dim++ {
		if w[dim] <= 0 {
			continue
		}
		f := (x[dim] - p.box.Min[dim]) / w[dim] * float64(span[dim])
		idx[dim] = clampInt(int(math.Floor(f)), 0, span[dim]-1)
	}
	return p.order.IndexToID(idx)
}
