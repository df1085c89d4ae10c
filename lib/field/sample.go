package field

import (
	"github.com/phil-mansfield/advect/lib/particles"
)

// VelocityFunc is an analytic velocity field.
type VelocityFunc func(x [3]float64, t float64) [3]float64

// Sample creates a block by evaluating fn at every node at time t. Attribute
// fields are sampled with attrs, which maps a node position to one float64
// per attribute and may be nil.
func Sample(
	origin, spacing [3]float64, dims [3]int, t float64, fn VelocityFunc,
	names []string, attrs func(x [3]float64) []float64,
) (*Block, error) {
	n := dims[0] * dims[1] * dims[2]
	b := &Block{Origin: origin, Spacing: spacing, Dims: dims}
	b.Velocity = make([][3]float64, n)

	data := make([][]float64, len(names))
	for i := range data {
		data[i] = make([]float64, n)
	}
	for node := 0; node < n; node++ {
		x := b.NodePoint(node)
		b.Velocity[node] = fn(x, t)
		if attrs != nil {
			vals := attrs(x)
			for i := range data {
				data[i][node] = vals[i]
			}
		}
	}

	fields := make([]particles.Field, len(names))
	for i := range names {
		fields[i] = particles.NewFloat64(names[i], data[i])
	}

	return NewBlock(origin, spacing, dims, b.Velocity, fields)
}

// Constant returns a VelocityFunc that is the same everywhere.
func Constant(v [3]float64) VelocityFunc {
	return func(x [3]float64, t float64) [3]float64 { return v }
}
