package field

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/particles"
)

var (
	// ErrOutOfDomain is returned when a point isn't inside any local block.
	ErrOutOfDomain = errors.New("point is outside the local domain")
	// ErrOutOfTime is returned when a time is outside the cached window.
	ErrOutOfTime = errors.New("time is outside the cached window")
)

// timeEps is the relative tolerance used when checking that a time is inside
// the cached window.
const timeEps = 1e-9

// Slot is one snapshot held by the temporal cache together with the
// structures built over it.
type Slot struct {
	Snap    *Snapshot
	Boxes   []bounds.Box
	Locator Locator
}

// NewSlot builds the bounds table and locator for a snapshot.
func NewSlot(snap *Snapshot, kind LocatorKind) *Slot {
	return &Slot{snap, snap.Bounds(), NewLocator(kind, snap)}
}

// Contains returns true if x is inside the bounding box of any block.
func (s *Slot) Contains(x [3]float64) bool {
	return bounds.AnyContains(s.Boxes, x) >= 0
}

// Interpolator evaluates the velocity field between two cached snapshots.
// Slots[0] holds the earlier snapshot at T0 and Slots[1] the later one at T1.
// When only one snapshot is available Slots[0] is nil, T0 == T1, and the
// field is treated as steady.
type Interpolator struct {
	Slots  [2]*Slot
	T0, T1 float64
}

// weight returns the temporal weight of the later slot.
// A single slot is a steady field and accepts any time.
func (in *Interpolator) weight(t float64) (float64, error) {
	if in.Slots[0] == nil {
		return 1, nil
	}
	span := in.T1 - in.T0
	tol := timeEps * (1 + absf(in.T0) + absf(in.T1))
	if t < in.T0-tol || t > in.T1+tol {
		return 0, fmt.Errorf("%w: t = %g, window = [%g, %g]",
			ErrOutOfTime, t, in.T0, in.T1)
	}
	if span <= 0 {
		return 1, nil
	}
	a := (t - in.T0) / span
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	return a, nil
}

// locate finds x in every slot that contributes at weight a, updating hints.
func (in *Interpolator) locate(
	x [3]float64, a float64, hints *[2]particles.Hint,
) (via particles.LocationState, err error) {
	via = particles.LocatedViaHint
	for s := 0; s < 2; s++ {
		slot := in.Slots[s]
		if slot == nil || (s == 0 && a == 1) || (s == 1 && a == 0) {
			continue
		}
		h, viaHint, found := slot.Locator.Locate(x, hints[s])
		if !found {
			return particles.OutOfDomain, fmt.Errorf("%w: (%g, %g, %g)",
				ErrOutOfDomain, x[0], x[1], x[2])
		}
		hints[s] = h
		if !viaHint {
			via = particles.LocatedViaSearch
		}
	}
	return via, nil
}

// Velocity returns the velocity at (x, t). Hints are tried first and
// updated with the cells that were found.
func (in *Interpolator) Velocity(
	x [3]float64, t float64, hints *[2]particles.Hint,
) ([3]float64, particles.LocationState, error) {
	a, err := in.weight(t)
	if err != nil {
		return [3]float64{}, particles.NotLocated, err
	}
	via, err := in.locate(x, a, hints)
	if err != nil {
		return [3]float64{}, via, err
	}

	v := [3]float64{}
	for s, w := range [2]float64{1 - a, a} {
		if w == 0 || in.Slots[s] == nil {
			continue
		}
		vs := in.cellValue(s, x, hints[s]).velocity()
		for dim := 0; dim < 3; dim++ {
			v[dim] += w * vs[dim]
		}
	}
	return v, via, nil
}

// Gradient returns the velocity gradient du_i/dx_j at (x, t).
func (in *Interpolator) Gradient(
	x [3]float64, t float64, hints *[2]particles.Hint,
) (*mat.Dense, error) {
	a, err := in.weight(t)
	if err != nil {
		return nil, err
	}
	if _, err := in.locate(x, a, hints); err != nil {
		return nil, err
	}

	jac := mat.NewDense(3, 3, nil)
	for s, w := range [2]float64{1 - a, a} {
		if w == 0 || in.Slots[s] == nil {
			continue
		}
		js := in.cellValue(s, x, hints[s]).jacobian()
		var m mat.Dense
		m.Scale(w, mat.NewDense(3, 3, js[:]))
		jac.Add(jac, &m)
	}
	return jac, nil
}

// Attributes interpolates the upstream attributes at (x, t) into out, which
// must have the schema's TupleSize.
func (in *Interpolator) Attributes(
	x [3]float64, t float64, hints *[2]particles.Hint, out []float64,
) error {
	a, err := in.weight(t)
	if err != nil {
		return err
	}
	if _, err := in.locate(x, a, hints); err != nil {
		return err
	}

	for i := range out {
		out[i] = 0
	}
	buf := make([]float64, len(out))
	for s, w := range [2]float64{1 - a, a} {
		if w == 0 || in.Slots[s] == nil {
			continue
		}
		in.cellValue(s, x, hints[s]).attributes(buf)
		for i := range out {
			out[i] += w * buf[i]
		}
	}
	return nil
}

// cellLookup is a located point inside one block.
type cellLookup struct {
	b    *Block
	cell int
	frac [3]float64
}

func (in *Interpolator) cellValue(
	s int, x [3]float64, h particles.Hint,
) cellLookup {
	b := in.Slots[s].Snap.Blocks[h.Block]
	frac, _ := b.InCell(h.Cell, x)
	return cellLookup{b, h.Cell, frac}
}

func (c cellLookup) velocity() [3]float64 { return c.b.VelocityAt(c.cell, c.frac) }
func (c cellLookup) jacobian() [9]float64 { return c.b.JacobianAt(c.cell, c.frac) }
func (c cellLookup) attributes(out []float64) {
	c.b.AttributesAt(c.cell, c.frac, out)
}

// Vorticity returns the curl of the velocity field given its gradient. It
// is twice the axial vector of the antisymmetric part (J - J^T)/2.
func Vorticity(jac mat.Matrix) [3]float64 {
	var anti mat.Dense
	anti.Sub(jac, jac.T())
	anti.Scale(0.5, &anti)
	return [3]float64{
		2 * anti.At(2, 1),
		2 * anti.At(0, 2),
		2 * anti.At(1, 0),
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
