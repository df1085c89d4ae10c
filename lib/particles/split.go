package particles

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/advect/lib/bounds"
)

// SplitScheme is a strategy for dividing space into the partitions owned by
// different ranks.
type SplitScheme interface {
	// Partitions returns the number of partitions.
	Partitions() int
	// Bounds returns the bounding box of partition i.
	Bounds(i int) bounds.Box
	// Candidates appends the indices of every partition containing x to buf.
	// Partitions share their faces, so a point can have several candidates.
	Candidates(x [3]float64, buf []int) []int
	// Indices writes the routing of a set of points: from[i][j] is the index
	// into x of a point owned by partition i and to[i][j] is the index of that
	// point among partition i's points. Points are routed to their first
	// candidate. Points outside every partition are dropped.
	Indices(x [][3]float64, from, to [][]int) (fromOut, toOut [][]int)
}

// Type assertions
var (
	_ SplitScheme = &UniformSplit{}
	_ SplitScheme = &BoxSplit{}
)

// UniformSplit is a SplitScheme which splits a box into equal-sized
// sub-boxes. Partitions are ordered x-major: partition i has the index
// (i % n[0], (i / n[0]) % n[1], i / (n[0]*n[1])).
type UniformSplit struct {
	box   bounds.Box
	n     [3]int
	width [3]float64
}

// NewUniformSplit splits box into n[0] x n[1] x n[2] partitions.
func NewUniformSplit(box bounds.Box, n [3]int) (*UniformSplit, error) {
	if box.IsEmpty() {
		return nil, fmt.Errorf("Cannot split the empty box %s.", box)
	}
	w := box.Width()
	for dim := 0; dim < 3; dim++ {
		if n[dim] <= 0 {
			return nil, fmt.Errorf("The split %v has a non-positive number "+
				"of partitions along dimension %d.", n, dim)
		}
		w[dim] /= float64(n[dim])
	}
	return &UniformSplit{box, n, w}, nil
}

// SplitCounts factors n into three partition counts which are as close to
// one another as possible, with the largest count along x.
func SplitCounts(n int) [3]int {
	out := [3]int{n, 1, 1}
	best := math.Inf(+1)
	for i := 1; i <= n; i++ {
		if n%i != 0 {
			continue
		}
		for j := 1; j <= n/i; j++ {
			if (n/i)%j != 0 {
				continue
			}
			k := n / i / j
			if i < j || j < k {
				continue
			}
			spread := float64(i) / float64(k)
			if spread < best {
				best, out = spread, [3]int{i, j, k}
			}
		}
	}
	return out
}

func (g *UniformSplit) Partitions() int { return g.n[0] * g.n[1] * g.n[2] }

func (g *UniformSplit) Bounds(i int) bounds.Box {
	idx := [3]int{i % g.n[0], (i / g.n[0]) % g.n[1], i / (g.n[0] * g.n[1])}
	b := bounds.Box{}
	for dim := 0; dim < 3; dim++ {
		b.Min[dim] = g.box.Min[dim] + float64(idx[dim])*g.width[dim]
		if idx[dim] == g.n[dim]-1 {
			b.Max[dim] = g.box.Max[dim]
		} else {
			b.Max[dim] = b.Min[dim] + g.width[dim]
		}
	}
	return b
}

func (g *UniformSplit) Candidates(x [3]float64, buf []int) []int {
	buf = buf[:0]
	if !g.box.Contains(x) {
		return buf
	}

	// Range of partition indices along each dimension whose boxes contain x.
	lo, hi := [3]int{}, [3]int{}
	for dim := 0; dim < 3; dim++ {
		f := (x[dim] - g.box.Min[dim]) / g.width[dim]
		i := int(math.Floor(f))
		lo[dim], hi[dim] = i, i
		if f == math.Floor(f) {
			lo[dim] = i - 1
		}
		lo[dim] = clampInt(lo[dim], 0, g.n[dim]-1)
		hi[dim] = clampInt(hi[dim], 0, g.n[dim]-1)
	}

	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				buf = append(buf, i+j*g.n[0]+k*g.n[0]*g.n[1])
			}
		}
	}
	return buf
}

func (g *UniformSplit) Indices(x [][3]float64, from, to [][]int) (fromOut, toOut [][]int) {
	return splitIndices(g, x, from, to)
}

// BoxSplit is a SplitScheme with explicitly given partition boxes. The boxes
// may overlap.
type BoxSplit struct {
	boxes []bounds.Box
}

// NewBoxSplit creates a BoxSplit from a list of boxes. Empty boxes are
// allowed and own nothing.
func NewBoxSplit(boxes []bounds.Box) *BoxSplit {
	return &BoxSplit{append([]bounds.Box(nil), boxes...)}
}

func (g *BoxSplit) Partitions() int         { return len(g.boxes) }
func (g *BoxSplit) Bounds(i int) bounds.Box { return g.boxes[i] }

func (g *BoxSplit) Candidates(x [3]float64, buf []int) []int {
	buf = buf[:0]
	for i := range g.boxes {
		if g.boxes[i].Contains(x) {
			buf = append(buf, i)
		}
	}
	return buf
}

func (g *BoxSplit) Indices(x [][3]float64, from, to [][]int) (fromOut, toOut [][]int) {
	return splitIndices(g, x, from, to)
}

// splitIndices implements SplitScheme.Indices in terms of Candidates.
func splitIndices(
	g SplitScheme, x [][3]float64, from, to [][]int,
) (fromOut, toOut [][]int) {
	n := g.Partitions()
	for len(from) < n {
		from = append(from, nil)
	}
	for len(to) < n {
		to = append(to, nil)
	}
	from, to = from[:n], to[:n]
	for i := range from {
		from[i] = from[i][:0]
		to[i] = to[i][:0]
	}

	buf := []int{}
	for i := range x {
		buf = g.Candidates(x[i], buf)
		if len(buf) == 0 {
			continue
		}
		p := buf[0]
		to[p] = append(to[p], len(from[p]))
		from[p] = append(from[p], i)
	}

	return from, to
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
