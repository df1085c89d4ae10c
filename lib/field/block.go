/*
package field contains the velocity fields that particles are advected
through: uniform grid blocks, the snapshots that group them at one time,
locators which find the cell containing a point, and interpolation in space
and time.

Blocks store node values. A point inside a cell is interpolated trilinearly
from the cell's eight corner nodes, and values at a time between two
snapshots are interpolated linearly.
*/
package field

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/particles"
)

// faceEps is the tolerance, in units of cell widths, for accepting points
// that sit on a block face but were pushed just outside it by rounding.
const faceEps = 1e-9

// Block is one partition of a snapshot: a uniform grid of nodes carrying a
// velocity vector and any number of attribute arrays.
type Block struct {
	Origin  [3]float64
	Spacing [3]float64
	// Dims gives the number of nodes along each axis. Node (i, j, k) has
	// index i + Dims[0]*(j + Dims[1]*k).
	Dims     [3]int
	Velocity [][3]float64
	Fields   []particles.Field
}

// NewBlock creates a Block and checks that its arrays are consistent.
func NewBlock(
	origin, spacing [3]float64, dims [3]int,
	vel [][3]float64, fields []particles.Field,
) (*Block, error) {
	b := &Block{origin, spacing, dims, vel, fields}
	for dim := 0; dim < 3; dim++ {
		if dims[dim] < 2 {
			return nil, fmt.Errorf("Blocks need at least two nodes along each "+
				"axis, but dimension %d has %d.", dim, dims[dim])
		}
		if spacing[dim] <= 0 {
			return nil, fmt.Errorf("Block spacing %v is not positive.", spacing)
		}
	}

	n := b.Nodes()
	if len(vel) != n {
		return nil, fmt.Errorf("A block with dimensions %v has %d nodes, but "+
			"%d velocities were given.", dims, n, len(vel))
	}
	for _, f := range fields {
		if f.Len() != n {
			return nil, fmt.Errorf("A block with %d nodes was given the "+
				"field '%s' with %d elements.", n, f.Name(), f.Len())
		}
	}
	if err := b.Schema().Validate(); err != nil {
		return nil, err
	}

	return b, nil
}

// Nodes returns the number of nodes in the block.
func (b *Block) Nodes() int { return b.Dims[0] * b.Dims[1] * b.Dims[2] }

// Cells returns the number of cells in the block.
func (b *Block) Cells() int {
	return (b.Dims[0] - 1) * (b.Dims[1] - 1) * (b.Dims[2] - 1)
}

// Schema returns the attribute schema of the block.
func (b *Block) Schema() particles.Schema { return particles.SchemaOf(b.Fields) }

// Bounds returns the bounding box of the block's nodes.
func (b *Block) Bounds() bounds.Box {
	box := bounds.Box{Min: b.Origin}
	for dim := 0; dim < 3; dim++ {
		box.Max[dim] = b.Origin[dim] + float64(b.Dims[dim]-1)*b.Spacing[dim]
	}
	return box
}

// NodeIndex returns the index of node (i, j, k).
func (b *Block) NodeIndex(ijk [3]int) int {
	return ijk[0] + b.Dims[0]*(ijk[1]+b.Dims[1]*ijk[2])
}

// NodeIJK is the inverse of NodeIndex.
func (b *Block) NodeIJK(node int) [3]int {
	return [3]int{
		node % b.Dims[0],
		(node / b.Dims[0]) % b.Dims[1],
		node / (b.Dims[0] * b.Dims[1]),
	}
}

// NodePoint returns the position of a node.
func (b *Block) NodePoint(node int) [3]float64 {
	ijk := b.NodeIJK(node)
	x := [3]float64{}
	for dim := 0; dim < 3; dim++ {
		x[dim] = b.Origin[dim] + float64(ijk[dim])*b.Spacing[dim]
	}
	return x
}

// CellIndex returns the index of the cell whose lowest node is (i, j, k).
func (b *Block) CellIndex(ijk [3]int) int {
	return ijk[0] + (b.Dims[0]-1)*(ijk[1]+(b.Dims[1]-1)*ijk[2])
}

// CellIJK is the inverse of CellIndex.
func (b *Block) CellIJK(cell int) [3]int {
	nx, ny := b.Dims[0]-1, b.Dims[1]-1
	return [3]int{cell % nx, (cell / nx) % ny, cell / (nx * ny)}
}

// CellContaining returns the cell containing x. Points on the faces between
// cells are assigned to the higher cell, except on the block's upper faces.
func (b *Block) CellContaining(x [3]float64) (int, bool) {
	ijk := [3]int{}
	for dim := 0; dim < 3; dim++ {
		f := (x[dim] - b.Origin[dim]) / b.Spacing[dim]
		nCells := b.Dims[dim] - 1
		if f < -faceEps || f > float64(nCells)+faceEps {
			return -1, false
		}
		i := int(math.Floor(f))
		if i < 0 {
			i = 0
		} else if i >= nCells {
			i = nCells - 1
		}
		ijk[dim] = i
	}
	return b.CellIndex(ijk), true
}

// InCell returns the fractional coordinates of x within a cell and whether x
// is actually inside it.
func (b *Block) InCell(cell int, x [3]float64) ([3]float64, bool) {
	if cell < 0 || cell >= b.Cells() {
		return [3]float64{}, false
	}
	ijk := b.CellIJK(cell)
	frac := [3]float64{}
	for dim := 0; dim < 3; dim++ {
		lo := b.Origin[dim] + float64(ijk[dim])*b.Spacing[dim]
		f := (x[dim] - lo) / b.Spacing[dim]
		if f < -faceEps || f > 1+faceEps {
			return frac, false
		}
		frac[dim] = math.Max(0, math.Min(1, f))
	}
	return frac, true
}

// cellNodes returns the indices of a cell's corner nodes, ordered so that
// corner c has offsets (c&1, (c>>1)&1, (c>>2)&1).
func (b *Block) cellNodes(cell int) [8]int {
	ijk := b.CellIJK(cell)
	out := [8]int{}
	for c := 0; c < 8; c++ {
		out[c] = b.NodeIndex([3]int{
			ijk[0] + c&1, ijk[1] + (c>>1)&1, ijk[2] + (c>>2)&1,
		})
	}
	return out
}

// trilinearWeights returns the interpolation weight of each corner.
func trilinearWeights(frac [3]float64) [8]float64 {
	w := [8]float64{}
	for c := 0; c < 8; c++ {
		w[c] = 1
		for dim := 0; dim < 3; dim++ {
			if (c>>dim)&1 == 1 {
				w[c] *= frac[dim]
			} else {
				w[c] *= 1 - frac[dim]
			}
		}
	}
	return w
}

// trilinearDerivs returns the derivative of each corner's weight with respect
// to each fractional coordinate.
func trilinearDerivs(frac [3]float64) [8][3]float64 {
	d := [8][3]float64{}
	for c := 0; c < 8; c++ {
		for wrt := 0; wrt < 3; wrt++ {
			d[c][wrt] = 1
			for dim := 0; dim < 3; dim++ {
				bit := (c >> dim) & 1
				switch {
				case dim == wrt && bit == 1:
					d[c][wrt] *= 1
				case dim == wrt:
					d[c][wrt] *= -1
				case bit == 1:
					d[c][wrt] *= frac[dim]
				default:
					d[c][wrt] *= 1 - frac[dim]
				}
			}
		}
	}
	return d
}

// VelocityAt interpolates the node velocities within a cell.
func (b *Block) VelocityAt(cell int, frac [3]float64) [3]float64 {
	nodes := b.cellNodes(cell)
	w := trilinearWeights(frac)
	v := [3]float64{}
	for c := 0; c < 8; c++ {
		for dim := 0; dim < 3; dim++ {
			v[dim] += w[c] * b.Velocity[nodes[c]][dim]
		}
	}
	return v
}

// JacobianAt returns du_i/dx_j within a cell, as a row-major 3x3 array.
func (b *Block) JacobianAt(cell int, frac [3]float64) [9]float64 {
	nodes := b.cellNodes(cell)
	d := trilinearDerivs(frac)
	jac := [9]float64{}
	for c := 0; c < 8; c++ {
		u := b.Velocity[nodes[c]]
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				jac[3*i+j] += u[i] * d[c][j] / b.Spacing[j]
			}
		}
	}
	return jac
}

// AttributesAt interpolates every attribute array within a cell and writes
// the flattened tuple to out, which must have the schema's TupleSize.
func (b *Block) AttributesAt(cell int, frac [3]float64, out []float64) {
	nodes := b.cellNodes(cell)
	w := trilinearWeights(frac)
	buf := [3]float64{}
	for i := range out {
		out[i] = 0
	}

	k := 0
	for _, f := range b.Fields {
		nc := particles.Components(f.Type())
		for c := 0; c < 8; c++ {
			f.Tuple(nodes[c], buf[:nc])
			for m := 0; m < nc; m++ {
				out[k+m] += w[c] * buf[m]
			}
		}
		k += nc
	}
}

// Crop returns a new block containing the nodes needed to interpolate
// anywhere inside box. It returns false if box doesn't overlap the block.
func (b *Block) Crop(box bounds.Box) (*Block, bool) {
	if !b.Bounds().Overlaps(box) {
		return nil, false
	}

	lo, hi := [3]int{}, [3]int{}
	for dim := 0; dim < 3; dim++ {
		fLo := (box.Min[dim] - b.Origin[dim]) / b.Spacing[dim]
		fHi := (box.Max[dim] - b.Origin[dim]) / b.Spacing[dim]
		lo[dim] = clamp(int(math.Floor(fLo+faceEps)), 0, b.Dims[dim]-2)
		hi[dim] = clamp(int(math.Ceil(fHi-faceEps)), lo[dim]+1, b.Dims[dim]-1)
	}

	out := &Block{Spacing: b.Spacing}
	for dim := 0; dim < 3; dim++ {
		out.Origin[dim] = b.Origin[dim] + float64(lo[dim])*b.Spacing[dim]
		out.Dims[dim] = hi[dim] - lo[dim] + 1
	}

	from := make([]int, 0, out.Nodes())
	to := make([]int, 0, out.Nodes())
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				to = append(to, len(from))
				from = append(from, b.NodeIndex([3]int{i, j, k}))
			}
		}
	}

	out.Velocity = make([][3]float64, len(from))
	for i := range from {
		out.Velocity[i] = b.Velocity[from[i]]
	}

	dest := particles.Particles{}
	for _, f := range b.Fields {
		f.CreateDestination(dest, len(from))
		// Names and types are created by CreateDestination, so Transfer
		// can't fail here.
		_ = f.Transfer(dest, from, to)
		out.Fields = append(out.Fields, dest[f.Name()])
	}

	return out, true
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
