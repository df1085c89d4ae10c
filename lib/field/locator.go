package field

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/particles"
)

// LocatorKind selects a strategy for finding the cell containing a point.
type LocatorKind int

const (
	// CellSearch checks every block whose bounding box contains the point.
	// It never misses a point that is inside some block.
	CellSearch LocatorKind = iota
	// PointSearch finds the nearest grid node with a kd-tree and checks the
	// cells around it. It is faster on snapshots with many blocks, but can
	// miss points near seams between blocks that don't share nodes.
	PointSearch
)

// ParseLocatorKind converts a config string to a LocatorKind.
func ParseLocatorKind(s string) (LocatorKind, error) {
	switch s {
	case "cell", "":
		return CellSearch, nil
	case "point":
		return PointSearch, nil
	}
	return CellSearch, fmt.Errorf("The locator '%s' is not one of 'cell' or 'point'.", s)
}

func (k LocatorKind) String() string {
	if k == PointSearch {
		return "point"
	}
	return "cell"
}

// Locator finds the block and cell containing a point in one snapshot.
type Locator interface {
	// Locate returns the block and cell containing x. If hint is set and
	// still contains x, it is returned without a search and viaHint is true.
	Locate(x [3]float64, hint particles.Hint) (h particles.Hint, viaHint, found bool)
}

// NewLocator builds a locator of the given kind over a snapshot.
func NewLocator(kind LocatorKind, snap *Snapshot) Locator {
	switch kind {
	case PointSearch:
		return NewPointLocator(snap)
	default:
		return NewCellLocator(snap)
	}
}

// checkHint returns true if the hinted cell contains x.
func checkHint(snap *Snapshot, x [3]float64, hint particles.Hint) bool {
	if !hint.Set || hint.Block < 0 || hint.Block >= len(snap.Blocks) {
		return false
	}
	_, ok := snap.Blocks[hint.Block].InCell(hint.Cell, x)
	return ok
}

// CellLocator implements CellSearch.
type CellLocator struct {
	snap  *Snapshot
	boxes []bounds.Box
}

// NewCellLocator creates a CellLocator over snap.
func NewCellLocator(snap *Snapshot) *CellLocator {
	return &CellLocator{snap, snap.Bounds()}
}

func (l *CellLocator) Locate(
	x [3]float64, hint particles.Hint,
) (h particles.Hint, viaHint, found bool) {
	if checkHint(l.snap, x, hint) {
		return hint, true, true
	}
	for i := range l.boxes {
		if !l.boxes[i].Pad(faceEps * maxSpacing(l.snap.Blocks[i])).Contains(x) {
			continue
		}
		if cell, ok := l.snap.Blocks[i].CellContaining(x); ok {
			return particles.NewHint(i, cell), false, true
		}
	}
	return particles.Hint{}, false, false
}

func maxSpacing(b *Block) float64 {
	s := b.Spacing[0]
	for dim := 1; dim < 3; dim++ {
		if b.Spacing[dim] > s {
			s = b.Spacing[dim]
		}
	}
	return s
}

// PointLocator implements PointSearch with a kd-tree over every node of
// every block.
type PointLocator struct {
	snap *Snapshot
	tree *kdtree.Tree
}

// NewPointLocator creates a PointLocator over snap.
func NewPointLocator(snap *Snapshot) *PointLocator {
	pts := nodePoints{}
	for bi, b := range snap.Blocks {
		for n := 0; n < b.Nodes(); n++ {
			pts = append(pts, nodePoint{b.NodePoint(n), bi, n})
		}
	}
	var tree *kdtree.Tree
	if len(pts) > 0 {
		tree = kdtree.New(pts, false)
	}
	return &PointLocator{snap, tree}
}

func (l *PointLocator) Locate(
	x [3]float64, hint particles.Hint,
) (h particles.Hint, viaHint, found bool) {
	if checkHint(l.snap, x, hint) {
		return hint, true, true
	}
	if l.tree == nil {
		return particles.Hint{}, false, false
	}

	nearest, _ := l.tree.Nearest(nodePoint{x: x})
	np := nearest.(nodePoint)
	b := l.snap.Blocks[np.block]
	ijk := b.NodeIJK(np.node)

	// The nearest node is a corner of up to eight cells.
	for c := 0; c < 8; c++ {
		cijk := [3]int{
			ijk[0] - c&1, ijk[1] - (c>>1)&1, ijk[2] - (c>>2)&1,
		}
		if !cellInRange(b, cijk) {
			continue
		}
		cell := b.CellIndex(cijk)
		if _, ok := b.InCell(cell, x); ok {
			return particles.NewHint(np.block, cell), false, true
		}
	}
	return particles.Hint{}, false, false
}

func cellInRange(b *Block, ijk [3]int) bool {
	for dim := 0; dim < 3; dim++ {
		if ijk[dim] < 0 || ijk[dim] >= b.Dims[dim]-1 {
			return false
		}
	}
	return true
}

// nodePoint is a grid node stored in the kd-tree.
type nodePoint struct {
	x           [3]float64
	block, node int
}

func (p nodePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(nodePoint)
	return p.x[d] - q.x[d]
}

func (p nodePoint) Dims() int { return 3 }

func (p nodePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(nodePoint)
	sum := 0.0
	for dim := 0; dim < 3; dim++ {
		d := p.x[dim] - q.x[dim]
		sum += d * d
	}
	return sum
}

// nodePoints is the kdtree.Interface for a list of nodePoint values.
type nodePoints []nodePoint

func (p nodePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodePoints) Len() int                              { return len(p) }
func (p nodePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p nodePoints) Pivot(d kdtree.Dim) int {
	return nodePlane{p, d}.pivot()
}

// nodePlane sorts nodePoints along one dimension.
type nodePlane struct {
	nodePoints
	kdtree.Dim
}

func (p nodePlane) Less(i, j int) bool {
	return p.nodePoints[i].x[p.Dim] < p.nodePoints[j].x[p.Dim]
}

func (p nodePlane) Swap(i, j int) {
	p.nodePoints[i], p.nodePoints[j] = p.nodePoints[j], p.nodePoints[i]
}

func (p nodePlane) Slice(start, end int) kdtree.SortSlicer {
	return nodePlane{p.nodePoints[start:end], p.Dim}
}

func (p nodePlane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
